// Package jwt signs, validates and inspects RS256 JSON Web Tokens.
//
// The stub task service signs session tokens with a Service:
//
//	svc := jwt.NewService(privateKey, "taskstub", 24*time.Hour)
//	token, err := svc.Sign(jwt.Claims{UserID: "42", Email: "a@test.com"})
//	claims, err := svc.Validate(token)
//
// Clients that only hold a token use Inspect to read its claims, for
// example the expiry, without a key:
//
//	claims, err := jwt.Inspect(token)
//	expires := claims.Expiry()
//
// Inspect performs no signature check and must not be used for authorization.
package jwt
