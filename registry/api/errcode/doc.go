// Package errcode provides a toolkit for defining and assigning error
// codes to Skynet client and portal errors. An ErrorCode is identified
// globally by a string value, typically all uppercase, by convention. When an
// `ErrorCode` is registered, a value unique to the process is assigned,
// which can be used for identity tests, including errors.Is.
//
// Use of this package is defined by the following flow:
//
//   - Each error is registered with the errcode package via the `Register()`
//     function, which takes a `group` name and an `ErrorDescriptor`. The
//     returned `ErrorCode` uniquely identifies the registered error.
//
//   - Once an error is registered, the returned `ErrorCode` can be used just
//     like any other golang `error` type.
//
//   - `WithArgs()` fills the `%s`/`%d` substitutions of the descriptor's
//     message, `WithMessage()` replaces it (used for messages surfaced
//     verbatim from a portal) and `WithDetail()` attaches extra data. Each
//     returns an `Error`, which still matches its code under errors.Is.
//
// Validation failures use ErrorCodeInvalidArgument with the field name and
// the violated constraint as arguments, so no validation path returns a bare
// generic failure.
package errcode
