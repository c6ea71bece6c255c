package auth_test

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/frahmantamala/identity-access/internal"
	"github.com/frahmantamala/identity-access/internal/auth"
)

var _ = ginkgo.Describe("JWTTokenIssuer", func() {
	var (
		issuerUnderTest *auth.JWTTokenIssuer
		sub             auth.Subject
	)

	ginkgo.BeforeEach(func() {
		issuerUnderTest = auth.NewJWTTokenIssuer(accessSecret, refreshSecret, 15*time.Minute, 24*time.Hour, issuer)
		sub = auth.Subject{
			UserID:    uuid.New(),
			Username:  "alice",
			TenantID:  uuid.New(),
			Roles:     []string{"admin", "viewer"},
			SessionID: uuid.New(),
		}
	})

	ginkgo.It("round-trips the subject through an access token", func() {
		token, err := issuerUnderTest.GenerateAccessToken(sub)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		gomega.Expect(issuerUnderTest.ValidateToken(token)).To(gomega.BeTrue())
		gomega.Expect(issuerUnderTest.ExtractUserID(token)).To(gomega.Equal(sub.UserID))
		gomega.Expect(issuerUnderTest.ExtractUsername(token)).To(gomega.Equal("alice"))
		gomega.Expect(issuerUnderTest.ExtractRoles(token)).To(gomega.Equal([]string{"admin", "viewer"}))

		claims, err := issuerUnderTest.ParseAccessToken(token)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(claims.Issuer).To(gomega.Equal(issuer))
		gomega.Expect(claims.SessionID).To(gomega.Equal(sub.SessionID.String()))
		gomega.Expect(claims.ID).ToNot(gomega.BeEmpty())
	})

	ginkgo.It("keeps access and refresh tokens apart", func() {
		access, err := issuerUnderTest.GenerateAccessToken(sub)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		refresh, tokenID, err := issuerUnderTest.GenerateRefreshToken(sub)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		_, err = issuerUnderTest.ParseRefreshToken(access)
		gomega.Expect(err).To(gomega.MatchError(apperrors.ErrInvalidToken))
		gomega.Expect(issuerUnderTest.ValidateToken(refresh)).To(gomega.BeFalse())

		claims, err := issuerUnderTest.ParseRefreshToken(refresh)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(claims.ID).To(gomega.Equal(tokenID))
		gomega.Expect(claims.Roles).To(gomega.BeEmpty())
	})

	ginkgo.It("rejects expired, foreign and unsigned tokens", func() {
		past := time.Now().Add(-time.Hour)
		expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
			UserID:    sub.UserID.String(),
			TokenType: auth.TokenTypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    issuer,
				IssuedAt:  jwt.NewNumericDate(past.Add(-time.Minute)),
				ExpiresAt: jwt.NewNumericDate(past),
			},
		})
		signed, err := expired.SignedString([]byte(accessSecret))
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(issuerUnderTest.ValidateToken(signed)).To(gomega.BeFalse())

		other := auth.NewJWTTokenIssuer(accessSecret, refreshSecret, 0, 0, "someone-else")
		foreign, err := other.GenerateAccessToken(sub)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(issuerUnderTest.ValidateToken(foreign)).To(gomega.BeFalse())

		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &auth.Claims{
			UserID:    sub.UserID.String(),
			TokenType: auth.TokenTypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    issuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		none, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(issuerUnderTest.ValidateToken(none)).To(gomega.BeFalse())
	})

	ginkgo.It("falls back to default lifetimes", func() {
		defaults := auth.NewJWTTokenIssuer(accessSecret, refreshSecret, 0, 0, issuer)
		gomega.Expect(defaults.AccessTokenTTL()).To(gomega.Equal(15 * time.Minute))
		gomega.Expect(defaults.RefreshTokenTTL()).To(gomega.Equal(7 * 24 * time.Hour))
	})
})

var _ = ginkgo.Describe("BcryptEncoder", func() {
	ginkgo.It("verifies only the encoded secret", func() {
		encoder := auth.NewBcryptEncoder(bcrypt.MinCost)
		hash, err := encoder.Encode("p1")
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(hash).ToNot(gomega.Equal("p1"))

		gomega.Expect(encoder.Matches("p1", hash)).To(gomega.BeTrue())
		gomega.Expect(encoder.Matches("p2", hash)).To(gomega.BeFalse())
		gomega.Expect(encoder.Matches("p1", "not-a-hash")).To(gomega.BeFalse())
	})

	ginkgo.It("replaces an out-of-range cost with the default", func() {
		hash, err := auth.NewBcryptEncoder(99).Encode("p1")
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(bcrypt.Cost([]byte(hash))).To(gomega.Equal(bcrypt.DefaultCost))
	})
})
