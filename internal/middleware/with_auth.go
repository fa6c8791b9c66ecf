package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/noah-isme/homework-grader/internal/utils"
)

const (
	// SessionCookieName is the cookie carrying the session id.
	SessionCookieName = "homework_session"
	// MessageLoginRequired is returned to unauthenticated callers.
	MessageLoginRequired = "please log in first"

	sessionStudentKey = "student_id"
	userIDLocal       = "user_id"
)

// NewSessionStore builds the cookie-backed session store.
func NewSessionStore(ttl time.Duration, secureCookie bool) *session.Store {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return session.New(session.Config{
		Expiration:     ttl,
		KeyLookup:      "cookie:" + SessionCookieName,
		CookieHTTPOnly: true,
		CookieSecure:   secureCookie,
		CookieSameSite: "Lax",
	})
}

// StartSession binds a fresh session to the student.
func StartSession(c *fiber.Ctx, store *session.Store, studentID uint) error {
	sess, err := store.Get(c)
	if err != nil {
		return err
	}
	if err := sess.Regenerate(); err != nil {
		return err
	}
	sess.Set(sessionStudentKey, studentID)
	return sess.Save()
}

// EndSession destroys the current session, if any.
func EndSession(c *fiber.Ctx, store *session.Store) error {
	sess, err := store.Get(c)
	if err != nil {
		return err
	}
	return sess.Destroy()
}

// RequireStudent allows the request through when it carries a valid session or, when
// tokens is non-nil, a valid bearer token. The student id is stored in locals.
func RequireStudent(store *session.Store, tokens *TokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokens != nil {
			if raw := bearerToken(c.Get(fiber.HeaderAuthorization)); raw != "" {
				studentID, err := tokens.Parse(raw)
				if err != nil {
					return utils.SendError(c, fiber.StatusUnauthorized, MessageLoginRequired)
				}
				c.Locals(userIDLocal, studentID)
				return c.Next()
			}
		}

		sess, err := store.Get(c)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, MessageLoginRequired)
		}

		studentID, err := normalizeUserID(sess.Get(sessionStudentKey))
		if err != nil || studentID == 0 {
			return utils.SendError(c, fiber.StatusUnauthorized, MessageLoginRequired)
		}

		c.Locals(userIDLocal, studentID)
		return c.Next()
	}
}

// StudentID returns the authenticated student id, or zero.
func StudentID(c *fiber.Ctx) uint {
	if id, ok := c.Locals(userIDLocal).(uint); ok {
		return id
	}
	return 0
}
