// Package flagutil provides additional support around the flag package. At the moment that consists
// solely of the StringValue struct, which conforms to flag.Value for flags the caller may repeat on
// the command line, such as a repeatable -ns flag that names more than one nameserver:
//
// $command -ns 198.51.100.1 -ns 198.51.100.2 -ns 2001:db8::53
//
// Usage is as documented in the flags package:
//
//		var servers flagutil.StringValue
//	     flagSet.Var(&servers, "ns", "Nameserver address (repeatable)")
//	     addrs := servers.Args() // Return an array of strings
package flagutil

import (
	"strings"
)

// StringValue is the type provided to flag.Var()
type StringValue struct {
	strings []string
}

// Set appends a string to the internal array - it is called by the flag package for each occurrence
// of the corresponding option on the command line. Part of the flag.Value interface.
func (t *StringValue) Set(s string) error {
	t.strings = append(t.strings, s)

	return nil
}

// String returns a space separated string of all the arguments provided by Set. Part of the
// flag.Value interface.
func (t *StringValue) String() string {
	return strings.Join(t.strings, " ")
}

// Args returns a copy of the array of strings returned by Set. You can safely modify this
// array without fear of changing the internal data.
func (t *StringValue) Args() []string {
	return append([]string{}, t.strings...)
}

// NArg returns the number of strings created by Set
func (t *StringValue) NArg() int {
	return len(t.strings)
}
