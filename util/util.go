// Package util holds the small helpers shared by every layer of the file
// system: logging and the integer arithmetic that shows up whenever a size
// has to be converted to a sector count.
package util

import "log"

// Debug is the verbosity threshold for DPrintf. Raise it to see more
// detail from the allocator and the façade while debugging a test failure.
const Debug uint64 = 1

// DPrintf logs format/a if level is at or below Debug.
func DPrintf(level uint64, format string, a ...interface{}) {
	if level <= Debug {
		log.Printf(format, a...)
	}
}

// RoundUp returns ceil(n / sz).
func RoundUp(n int, sz int) int {
	return (n + sz - 1) / sz
}

// Min returns the smaller of n and m.
func Min(n int, m int) int {
	if n < m {
		return n
	}
	return m
}
