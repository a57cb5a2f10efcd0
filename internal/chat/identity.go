package chat

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"dating-app-server/internal/models"
)

// Identity is the minimal projection of an authenticated account the
// messaging core needs.
type Identity struct {
	ID       string
	Role     models.Role
	IsActive bool
}

// IdentityVerifier is the external identity collaborator: token issuance
// lives elsewhere, only validation is consumed here.
type IdentityVerifier interface {
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}

// TokenClaims is what the token layer extracts from a bearer token before
// the account row is consulted.
type TokenClaims struct {
	UserID string
	Role   models.Role
}

// ClaimsParser validates a raw token string and returns its claims.
type ClaimsParser func(token string) (*TokenClaims, error)

// DBVerifier validates tokens via parse and then loads the account
// projection, rejecting inactive accounts. All failures map to ErrAuth.
type DBVerifier struct {
	DB    *gorm.DB
	Parse ClaimsParser
}

// NewDBVerifier creates a verifier over db using parse for token claims.
func NewDBVerifier(db *gorm.DB, parse ClaimsParser) *DBVerifier {
	return &DBVerifier{DB: db, Parse: parse}
}

// VerifyToken implements IdentityVerifier.
func (v *DBVerifier) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, authErr("missing token")
	}
	claims, err := v.Parse(token)
	if err != nil {
		return nil, authErr("invalid token: %v", err)
	}

	var user models.User
	if err := v.DB.WithContext(ctx).First(&user, "id = ?", claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authErr("account %s no longer exists", claims.UserID)
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, authErr("account is inactive")
	}

	return &Identity{ID: user.ID, Role: user.Role, IsActive: user.IsActive}, nil
}
