// Package jwt issues and verifies HMAC-SHA256 access tokens built on
// github.com/golang-jwt/jwt/v5.
//
// An access token names the principal in the sub claim and carries the
// opaque session token in sid_token. Verifying the signature proves who the
// caller is; whether the session still exists is a separate lookup.
//
//	svc, err := jwt.NewFromString(secret, jwt.WithIssuer("sessionhub"))
//	if err != nil {
//		return err
//	}
//
//	token, err := svc.Issue(userID, sess.Token, 15*time.Minute)
//
//	claims, err := svc.Parse(token)
//	switch {
//	case errors.Is(err, jwt.ErrExpiredToken):
//		// ask the client to refresh
//	case err != nil:
//		// reject
//	}
//
// Keys shorter than 32 bytes are rejected. Only HS256 is accepted on parse.
package jwt
