// utils/auth.go
package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"orderdesk-backend/apperrors"
	"orderdesk-backend/config"
	"orderdesk-backend/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const UserKey = "user"

// Claims is the identity information the API needs from a token.
type Claims struct {
	Subject    string `json:"sub"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// TokenVerifier turns a bearer token into claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// UserResolver maps verified claims to a local user, creating or updating
// it as needed.
type UserResolver interface {
	ResolveUser(ctx context.Context, claims *Claims) (*models.User, error)
}

// ---------------------------------------------------------------------------
// OIDC userinfo

// UserInfoVerifier validates access tokens by presenting them to the
// identity provider's userinfo endpoint.
type UserInfoVerifier struct {
	Endpoint   string
	HTTPClient *http.Client
}

func (v *UserInfoVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	clientCtx := ctx
	if v.HTTPClient != nil {
		clientCtx = context.WithValue(ctx, oauth2.HTTPClient, v.HTTPClient)
	}
	client := oauth2.NewClient(clientCtx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned %d: %w", resp.StatusCode, apperrors.ErrUnauthenticated)
	}

	var claims Claims
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	return &claims, nil
}

// DiscoverUserInfoEndpoint reads userinfo_endpoint from the issuer's
// OpenID configuration document.
func DiscoverUserInfoEndpoint(ctx context.Context, issuer string, httpClient *http.Client) (string, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	wellKnown := strings.TrimRight(issuer, "/") + "/.well-known/openid-configuration"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnown, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", wellKnown, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openid configuration returned status %d", resp.StatusCode)
	}

	var doc struct {
		Issuer           string `json:"issuer"`
		UserInfoEndpoint string `json:"userinfo_endpoint"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("failed to decode openid configuration: %w", err)
	}
	if doc.UserInfoEndpoint == "" {
		return "", errors.New("openid configuration has no userinfo_endpoint")
	}
	return doc.UserInfoEndpoint, nil
}

// ---------------------------------------------------------------------------
// Locally signed JWTs

// JWTVerifier accepts HMAC-signed JWTs. Issuer and Audience are checked
// when set.
type JWTVerifier struct {
	Secret   []byte
	Issuer   string
	Audience string
}

type tokenClaims struct {
	Email      string `json:"email"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	jwt.RegisteredClaims
}

func (v *JWTVerifier) Verify(_ context.Context, tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}

	var tc tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &tc, func(token *jwt.Token) (interface{}, error) {
		return v.Secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("parse token: %w", errors.Join(apperrors.ErrUnauthenticated, err))
	}

	return &Claims{
		Subject:    tc.Subject,
		Email:      tc.Email,
		GivenName:  tc.GivenName,
		FamilyName: tc.FamilyName,
	}, nil
}

// GenerateToken signs claims with HS256, valid for ttl.
func GenerateToken(secret []byte, claims Claims, issuer string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("JWT secret not set")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Email:      claims.Email,
		GivenName:  claims.GivenName,
		FamilyName: claims.FamilyName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(secret)
}

// ---------------------------------------------------------------------------
// Middleware

// AuthMiddleware requires a bearer token on every request in the group and
// stores the resolved user under UserKey.
func AuthMiddleware(verifier TokenVerifier, users UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.RequestLogger(c, zerolog.Nop())

		tokenString := c.GetHeader("Authorization")
		if tokenString == "" {
			RespondWithError(c, http.StatusForbidden, "Authentication credentials were not provided.")
			return
		}

		if len(tokenString) > 7 && strings.EqualFold(tokenString[0:7], "Bearer ") {
			tokenString = strings.TrimSpace(tokenString[7:])
		}

		claims, err := verifier.Verify(c.Request.Context(), tokenString)
		if err != nil {
			logger.Info().Err(err).Msg("token rejected")
			RespondWithError(c, http.StatusForbidden, "Invalid authentication token.")
			return
		}

		user, err := users.ResolveUser(c.Request.Context(), claims)
		if err != nil {
			if errors.Is(err, apperrors.ErrUnauthenticated) {
				logger.Info().Err(err).Msg("no user for token")
				RespondWithError(c, http.StatusForbidden, "Invalid authentication token.")
				return
			}
			logger.Error().Err(err).Msg("failed to resolve user")
			RespondWithError(c, http.StatusInternalServerError, "Failed to authenticate request")
			return
		}

		c.Set(UserKey, user)
		c.Next()
	}
}

// CurrentUser returns the user stored by AuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}
