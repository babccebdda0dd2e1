// Package validate checks admin and portal form submissions and turns them
// into backend request bodies.
//
// Validation functions take the posted url.Values and return the request
// to send plus an error. The error is an *Errors holding one message per
// field, in the order the fields were checked; Error() returns the first,
// which is what the forms show in their banner.
package validate
