package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"

	appErrors "github.com/noah-isme/prhi-portal-api/pkg/errors"
)

// SQLSTATE codes raised when a schema object the portal depends on is absent or broken.
const (
	codeUndefinedFunction = pq.ErrorCode("42883")
	codeUndefinedTable    = pq.ErrorCode("42P01")
	codeUndefinedColumn   = pq.ErrorCode("42703")
	codeInfiniteRecursion = pq.ErrorCode("42P17")
	codeUniqueViolation   = pq.ErrorCode("23505")
	codeDatatypeMismatch  = pq.ErrorCode("42804")
)

// IsMissingCapability reports whether err means a procedure, table or column does not exist.
func IsMissingCapability(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUndefinedFunction, codeUndefinedTable, codeUndefinedColumn:
			return true
		}
		return false
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "does not exist") {
		return false
	}
	return strings.Contains(msg, "function") || strings.Contains(msg, "relation") || strings.Contains(msg, "column")
}

// IsPolicyRecursion reports whether err is a row-level security policy that recurses into itself.
func IsPolicyRecursion(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == codeInfiniteRecursion
	}
	return strings.Contains(strings.ToLower(err.Error()), "infinite recursion")
}

// isResultMismatch reports a set-returning function whose query no longer matches its declared columns.
func isResultMismatch(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == codeDatatypeMismatch
	}
	return strings.Contains(err.Error(), "structure of query does not match function result type")
}

// IsUniqueViolation reports a duplicate key error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation
}

// IsNotFound reports an empty single-row result.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// fixRequired turns a missing-capability failure into an actionable configuration error.
// It returns nil when err is some other failure.
func fixRequired(err error, message string) error {
	if !IsMissingCapability(err) && !IsPolicyRecursion(err) {
		return nil
	}
	return configurationFix(err, message)
}

func configurationFix(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrConfigurationFix.Code, appErrors.ErrConfigurationFix.Status, "DATABASE FIX REQUIRED: "+message)
}

// PolicyRecursionMessage is shown when profile reads fail on a recursive security policy.
const PolicyRecursionMessage = "DATABASE FIX REQUIRED: Your row security policies are causing an infinite loop. The app cannot work until the policy fix is applied to the database."

// ClassifyProfileError maps a profile read failure, flagging a recursive policy.
func ClassifyProfileError(err error) error {
	if IsPolicyRecursion(err) {
		return appErrors.Wrap(err, appErrors.ErrConfigurationFix.Code, appErrors.ErrConfigurationFix.Status, PolicyRecursionMessage)
	}
	return err
}
