package game

import (
	"fmt"
	"strings"

	"github.com/anchorwatch/battleship-server/apperr"
)

func gameNotFound() error {
	return apperr.RuleViolation("GAME NOT FOUND")
}

func ruleViolation(format string, args ...any) error {
	return apperr.RuleViolation(fmt.Sprintf(format, args...))
}

func upper(s string) string {
	return strings.ToUpper(s)
}
