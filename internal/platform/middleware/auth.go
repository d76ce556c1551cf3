package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "givebridge/pkg/domain"
	dErrors "givebridge/pkg/domain-errors"
	"givebridge/pkg/platform/httputil"
	"givebridge/pkg/requestcontext"
)

// DonorVerifier validates upstream-issued donor tokens. The engine never
// authenticates donors itself; it only checks that the identity service's
// signature is intact and extracts the donor id.
type DonorVerifier struct {
	signingKey []byte
}

// NewDonorVerifier builds a verifier for HS256 tokens signed with key.
func NewDonorVerifier(key string) *DonorVerifier {
	return &DonorVerifier{signingKey: []byte(key)}
}

// Verify parses the token and returns the donor id from its subject claim.
func (v *DonorVerifier) Verify(tokenString string) (id.DonorID, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return id.DonorID{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return id.DonorID{}, dErrors.New(dErrors.CodeUnauthorized, "token missing subject")
	}
	donorID, err := id.ParseDonorID(sub)
	if err != nil {
		return id.DonorID{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "token subject is not a donor id")
	}
	return donorID, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}

// RequireDonor rejects requests without a valid donor token. Used by the
// subscription surface, which is always donor-scoped.
func RequireDonor(verifier *DonorVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}
			donorID, err := verifier.Verify(token)
			if err != nil {
				logger.WarnContext(r.Context(), "donor token rejected", "error", err)
				httputil.WriteError(w, err)
				return
			}
			ctx := requestcontext.WithDonorID(r.Context(), donorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalDonor attaches the donor id when a valid token is present and lets
// the request through as a guest otherwise. Used by the one-off donation
// surface, which supports both authenticated and guest callers.
func OptionalDonor(verifier *DonorVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			donorID, err := verifier.Verify(token)
			if err != nil {
				// A presented-but-invalid token is rejected rather than
				// silently downgraded to guest.
				logger.WarnContext(r.Context(), "donor token rejected", "error", err)
				httputil.WriteError(w, err)
				return
			}
			ctx := requestcontext.WithDonorID(r.Context(), donorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
