package tokensvc

import (
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/account"
)

const refreshTokenUse = "refresh"

var (
	nowFunc = time.Now // mockable

	signingMethod = jwt.SigningMethodHS256

	// errors
	errInvalidToken = errors.New("invalid token")
)

// AccessClaims represents the authorization claims transmitted via an access token.
type AccessClaims struct {
	jwt.StandardClaims
	AccountID int      `json:"account_id"`
	Roles     []string `json:"roles"`
	TeacherID *int     `json:"teacher_id,omitempty"`
	StudentID *int     `json:"student_id,omitempty"`
}

// Identity normalizes the claims for request handlers.
func (c AccessClaims) Identity() account.Identity {
	return account.NewIdentity(c.AccountID, c.Roles)
}

// RefreshClaims only identify the account: roles are fetched again on every refresh.
type RefreshClaims struct {
	jwt.StandardClaims
	AccountID int    `json:"account_id"`
	TokenUse  string `json:"token_use"`
}

// JWTCodec signs access and refresh tokens with HS256, each kind with its own key.
type JWTCodec struct {
	accessKey  []byte
	refreshKey []byte
	issuer     string
	refreshTTL time.Duration
}

var _ account.TokenCodec = (*JWTCodec)(nil) // interface compliance check

func NewJWTCodec(conf *core.Config) *JWTCodec {
	vala.BeginValidation().Validate(
		vala.IsNotNil(conf, "conf"),
		vala.StringNotEmpty(conf.Auth.AccessKey, "conf.Auth.AccessKey"),
		vala.StringNotEmpty(conf.Auth.RefreshKey, "conf.Auth.RefreshKey"),
	).CheckAndPanic()

	return &JWTCodec{
		accessKey:  []byte(conf.Auth.AccessKey),
		refreshKey: []byte(conf.Auth.RefreshKey),
		issuer:     conf.Auth.Issuer,
		refreshTTL: conf.Auth.RefreshTokenTTL,
	}
}

func (c *JWTCodec) standardClaims(accountID int, ttl time.Duration) jwt.StandardClaims {
	now := nowFunc()
	return jwt.StandardClaims{
		Issuer:    c.issuer,
		Subject:   strconv.Itoa(accountID),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
}

func (c *JWTCodec) SignAccessToken(claims account.Claims, ttl time.Duration) (string, error) {
	roles := claims.Roles
	if roles == nil {
		roles = []string{}
	}
	token := jwt.NewWithClaims(signingMethod, &AccessClaims{
		StandardClaims: c.standardClaims(claims.AccountID, ttl),
		AccountID:      claims.AccountID,
		Roles:          roles,
		TeacherID:      claims.TeacherID,
		StudentID:      claims.StudentID,
	})
	ss, err := token.SignedString(c.accessKey)
	return ss, errors.Wrap(err, "signing access token")
}

func (c *JWTCodec) SignRefreshToken(accountID int) (string, error) {
	token := jwt.NewWithClaims(signingMethod, &RefreshClaims{
		StandardClaims: c.standardClaims(accountID, c.refreshTTL),
		AccountID:      accountID,
		TokenUse:       refreshTokenUse,
	})
	ss, err := token.SignedString(c.refreshKey)
	return ss, errors.Wrap(err, "signing refresh token")
}

func (c *JWTCodec) ParseRefreshToken(ss string) (int, error) {
	claims := new(RefreshClaims)
	token, err := jwt.ParseWithClaims(ss, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != signingMethod.Alg() {
			return nil, errInvalidToken
		}
		return c.refreshKey, nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "parsing refresh token")
	}
	if !token.Valid || claims.TokenUse != refreshTokenUse || claims.AccountID <= 0 {
		return 0, errInvalidToken
	}
	return claims.AccountID, nil
}
