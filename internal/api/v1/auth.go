package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/vigil/internal/auth"
)

type LoginInput struct {
	Body struct {
		Password string `json:"password" minLength:"1" maxLength:"128" doc:"Operator password"` //nolint:gosec // G117: login credential DTO
	}
}

type LoginOutput struct {
	Body struct {
		Token string `json:"token"` //nolint:gosec // G117: auth response DTO
	}
}

func RegisterAuthRoutes(api huma.API, authSvc AuthService) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Login with the operator password",
		Tags:        []string{"Auth"},
	}, func(_ context.Context, input *LoginInput) (*LoginOutput, error) {
		token, err := authSvc.Login(input.Body.Password)
		if err != nil {
			if errors.Is(err, auth.ErrWrongPassword) {
				return nil, huma.Error401Unauthorized("wrong password")
			}
			return nil, huma.Error500InternalServerError("failed to login", err)
		}

		out := &LoginOutput{}
		out.Body.Token = token
		return out, nil
	})
}
