package dateutil

import (
	"time"
)

// Age calculates the whole-year age at a given date
func Age(birthDate, atDate time.Time) int {
	age := atDate.Year() - birthDate.Year()
	if atDate.Month() < birthDate.Month() ||
		(atDate.Month() == birthDate.Month() && atDate.Day() < birthDate.Day()) {
		age--
	}
	return age
}

// AgeYearsMonths calculates the age as whole years plus residual months
func AgeYearsMonths(birthDate, atDate time.Time) (int, int) {
	years := atDate.Year() - birthDate.Year()
	months := int(atDate.Month()) - int(birthDate.Month())

	if atDate.Month() < birthDate.Month() ||
		(atDate.Month() == birthDate.Month() && atDate.Day() < birthDate.Day()) {
		years--
		months += 12
	}
	if months < 0 {
		months += 12
	}
	return years, months % 12
}

// IsBelowEarlyWithdrawalAge reports whether the person is under 59 years
// 6 months, the threshold below which tax-deferred withdrawals are penalized.
func IsBelowEarlyWithdrawalAge(birthDate, atDate time.Time) bool {
	years, months := AgeYearsMonths(birthDate, atDate)
	return years < 59 || (years == 59 && months < 6)
}

// DaysBetween calculates the number of calendar days from one date to another
func DaysBetween(from, to time.Time) int {
	fromDay := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	toDay := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(toDay.Sub(fromDay).Hours() / 24)
}

// IsLeapYear checks if a year is a leap year
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInYear returns the number of days in a given year
func DaysInYear(year int) int {
	if IsLeapYear(year) {
		return 366
	}
	return 365
}

// AddDays adds a number of calendar days to a date
func AddDays(date time.Time, days int) time.Time {
	return date.AddDate(0, 0, days)
}

// AddMonths adds a specified number of months to a date
func AddMonths(date time.Time, months int) time.Time {
	return date.AddDate(0, months, 0)
}

// AddYears adds a specified number of years to a date
func AddYears(date time.Time, years int) time.Time {
	return date.AddDate(years, 0, 0)
}

// EndOfYear returns December 31 of the date's year
func EndOfYear(date time.Time) time.Time {
	return time.Date(date.Year(), 12, 31, 0, 0, 0, 0, date.Location())
}

// BeginningOfYear returns January 1 of the date's year
func BeginningOfYear(date time.Time) time.Time {
	return time.Date(date.Year(), 1, 1, 0, 0, 0, 0, date.Location())
}

// IsYearEnd reports whether the date is December 31
func IsYearEnd(date time.Time) bool {
	return date.Month() == 12 && date.Day() == 31
}

// SameDay reports whether two dates fall on the same calendar day
func SameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// Date builds a UTC date at midnight, the canonical form for simulation dates
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
