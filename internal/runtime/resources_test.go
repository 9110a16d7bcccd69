package runtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/vigil/internal/runtime"
)

func TestParseResources(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cpu     string
		mem     string
		want    runtime.Resources
		wantErr string
	}{
		{name: "empty means unlimited", cpu: "", mem: "", want: runtime.Resources{}},
		{name: "zero means unlimited", cpu: "0", mem: "0", want: runtime.Resources{}},
		{
			name: "defaults",
			cpu:  "2", mem: "2g",
			want: runtime.Resources{Memory: 2 * 1024 * 1024 * 1024, CPUQuota: 200_000},
		},
		{
			name: "fractional cpu",
			cpu:  "0.5", mem: "512m",
			want: runtime.Resources{Memory: 512 * 1024 * 1024, CPUQuota: 50_000},
		},
		{
			name: "quarter core with kilobytes",
			cpu:  "0.25", mem: "1024k",
			want: runtime.Resources{Memory: 1024 * 1024, CPUQuota: 25_000},
		},
		{
			name: "memory suffix is case-insensitive",
			cpu:  "1", mem: "1G",
			want: runtime.Resources{Memory: 1024 * 1024 * 1024, CPUQuota: 100_000},
		},
		{
			name: "bare memory integer is bytes",
			cpu:  "1", mem: "100",
			want: runtime.Resources{Memory: 100, CPUQuota: 100_000},
		},
		{
			name: "whitespace is trimmed",
			cpu:  "  2  ", mem: "  512m  ",
			want: runtime.Resources{Memory: 512 * 1024 * 1024, CPUQuota: 200_000},
		},
		{name: "non-numeric memory", cpu: "1", mem: "abc", wantErr: "memory"},
		{name: "fractional memory value", cpu: "1", mem: "12.5m", wantErr: "memory"},
		{name: "non-numeric cpu", cpu: "abc", mem: "1g", wantErr: "cpu"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := runtime.ParseResources(tt.cpu, tt.mem)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
