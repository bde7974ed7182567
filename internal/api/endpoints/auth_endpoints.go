package endpoints

import (
	"fmt"
	"net/http"

	"channah-support-chat/internal/api/middleware"
	"channah-support-chat/internal/dto"
	"channah-support-chat/internal/model"
	authsvc "channah-support-chat/internal/service/auth"
)

type AuthEndpoints interface {
	Register(http.ResponseWriter, *http.Request) error
	Login(http.ResponseWriter, *http.Request) error
	Me(http.ResponseWriter, *http.Request) error
}

type authEndpoints struct {
	service *authsvc.Service
}

func NewAuthEndpoints(service *authsvc.Service) AuthEndpoints {
	return &authEndpoints{
		service: service,
	}
}

func (h *authEndpoints) Register(w http.ResponseWriter, r *http.Request) error {
	var req dto.RegisterRequest
	if err := decodeJSON(w, r, "register", &req); err != nil {
		return err
	}

	result, err := h.service.Register(r.Context(), authsvc.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return authServiceError(err)
	}

	return WriteJSON(w, http.StatusCreated, toAuthResponse(result))
}

func (h *authEndpoints) Login(w http.ResponseWriter, r *http.Request) error {
	var req dto.LoginRequest
	if err := decodeJSON(w, r, "login", &req); err != nil {
		return err
	}

	result, err := h.service.Login(r.Context(), authsvc.LoginParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return authServiceError(err)
	}

	return WriteJSON(w, http.StatusOK, toAuthResponse(result))
}

func (h *authEndpoints) Me(w http.ResponseWriter, r *http.Request) error {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		return errUnauthenticated
	}

	user, err := h.service.Me(r.Context(), identity)
	if err != nil {
		return authServiceError(err)
	}

	return WriteJSON(w, http.StatusOK, toUserResponse(user))
}

var errUnauthenticated = &HTTPError{
	StatusCode: http.StatusUnauthorized,
	Message:    "Unauthorized",
}

func authServiceError(err error) error {
	if err == nil {
		return nil
	}

	svcErr, ok := err.(*authsvc.Error)
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			Err:        fmt.Errorf("auth service: %w", err),
		}
	}

	var cause error
	if svcErr.Err != nil {
		cause = fmt.Errorf("%s: %w", svcErr.Message, svcErr.Err)
	} else {
		cause = svcErr
	}

	switch svcErr.Code {
	case authsvc.ErrorCodeValidation:
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: svcErr.Message, Err: cause}
	case authsvc.ErrorCodeUnauthorized:
		return &HTTPError{StatusCode: http.StatusUnauthorized, Message: svcErr.Message, Err: cause}
	case authsvc.ErrorCodeNotFound:
		return &HTTPError{StatusCode: http.StatusNotFound, Message: svcErr.Message, Err: cause}
	case authsvc.ErrorCodeConflict:
		return &HTTPError{StatusCode: http.StatusConflict, Message: svcErr.Message, Err: cause}
	default:
		return &HTTPError{StatusCode: http.StatusInternalServerError, Message: "Internal server error", Err: cause}
	}
}

func toAuthResponse(result authsvc.AuthResult) dto.AuthResponse {
	return dto.AuthResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      toUserResponse(result.User),
	}
}

func toUserResponse(user model.UserItem) dto.UserResponse {
	return dto.UserResponse{
		UserID:    user.UserID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt,
	}
}
