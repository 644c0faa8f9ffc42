package remote

import (
	"context"
	"errors"

	"github.com/jrsteele09/go-portfolio-auth/auth"
	"github.com/jrsteele09/go-portfolio-auth/identity"
)

// MapProviderError translates an identity provider failure into the auth
// error taxonomy. Errors that are already *auth.Error pass through.
func MapProviderError(err error) error {
	if err == nil {
		return nil
	}
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		return err
	}

	code := identity.CodeOf(err)
	switch code {
	case identity.CodeUserNotFound, identity.CodeWrongPassword, identity.CodeInvalidCredential:
		return &auth.Error{Kind: auth.KindInvalidCredentials, Code: code, Message: auth.InvalidCredentialsErr.Message, Err: err}
	case identity.CodeEmailInUse:
		return &auth.Error{Kind: auth.KindAlreadyExists, Code: code, Message: "email already registered", Err: err}
	case identity.CodeWeakPassword:
		return &auth.Error{Kind: auth.KindValidationFailed, Field: "secret", Code: code, Message: "password is too weak", Err: err}
	case identity.CodeInvalidEmail:
		return &auth.Error{Kind: auth.KindValidationFailed, Field: "email", Code: code, Message: "invalid email", Err: err}
	case identity.CodeNetworkFailed, identity.CodeTimeout:
		return auth.NetworkFailure(code, err)
	case "":
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return auth.NetworkFailure(identity.CodeTimeout, err)
		}
		return auth.ProviderError(identity.CodeInternal, err)
	default:
		return auth.ProviderError(code, err)
	}
}
