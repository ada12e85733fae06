// Package services provides business logic and orchestration services.
//
// This file implements the strategy registry for recurring rule dueness
// checking. Each frequency has its own checker encapsulating when a rule
// should next materialize a transaction.
package services

import (
	"fmt"
	"time"

	"bilancio/internal/core"
)

// DuenessChecker decides whether a recurring rule is due for execution.
type DuenessChecker interface {
	// IsDue reports whether the rule should be processed given its last
	// execution time and the current time.
	IsDue(lastExecution, now time.Time, startDate time.Time) bool
}

// DailyChecker fires once per calendar day.
type DailyChecker struct{}

func (DailyChecker) IsDue(lastExecution, now time.Time, _ time.Time) bool {
	if lastExecution.IsZero() {
		return true
	}
	return lastExecution.Format("2006-01-02") != now.Format("2006-01-02")
}

// WeeklyChecker fires when 7 or more days have passed.
type WeeklyChecker struct{}

func (WeeklyChecker) IsDue(lastExecution, now time.Time, _ time.Time) bool {
	if lastExecution.IsZero() {
		return true
	}
	daysSince := now.Sub(lastExecution).Hours() / 24
	return daysSince >= 7
}

// MonthlyChecker fires once per month on the rule's start day, clamped to
// the last day of shorter months (a rule started on the 31st fires on
// Feb 28).
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(lastExecution, now time.Time, startDate time.Time) bool {
	if lastExecution.IsZero() {
		return true
	}

	if lastExecution.Year() == now.Year() && lastExecution.Month() == now.Month() {
		return false
	}

	targetDay := clampDay(startDate.Day(), now)
	return now.Day() >= targetDay
}

// YearlyChecker fires once per year on the rule's start month and day,
// with the same month-end clamping as MonthlyChecker.
type YearlyChecker struct{}

func (YearlyChecker) IsDue(lastExecution, now time.Time, startDate time.Time) bool {
	if lastExecution.IsZero() {
		return true
	}

	if lastExecution.Year() == now.Year() {
		return false
	}

	targetMonth := int(startDate.Month())
	if int(now.Month()) < targetMonth {
		return false
	}
	if int(now.Month()) == targetMonth {
		return now.Day() >= clampDay(startDate.Day(), now)
	}
	return true
}

func clampDay(targetDay int, now time.Time) int {
	lastDayOfMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if targetDay > lastDayOfMonth {
		return lastDayOfMonth
	}
	return targetDay
}

// duenessStrategies maps frequencies to their checkers.
var duenessStrategies = map[core.Frequency]DuenessChecker{
	core.Daily:   DailyChecker{},
	core.Weekly:  WeeklyChecker{},
	core.Monthly: MonthlyChecker{},
	core.Yearly:  YearlyChecker{},
}

// GetDuenessChecker returns the checker for a frequency, or an error for
// unsupported frequencies.
func GetDuenessChecker(frequency core.Frequency) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return checker, nil
}
