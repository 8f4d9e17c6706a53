// Package errors_test demonstrates the usage of the error code system.
package errors_test

import (
	"fmt"

	"github.com/kart-io/docqa/pkg/errors"
)

// ExampleFromError shows how arbitrary errors are normalized to Errno.
func ExampleFromError() {
	err := doRiskyWork()
	e := errors.FromError(err)
	fmt.Println(e.Code, e.HTTPStatus())
	// Output: 7000 500
}

func doRiskyWork() error {
	return fmt.Errorf("disk full")
}

// ExampleErrno_WithMessage shows attaching a request-specific message while
// keeping the stable code.
func ExampleErrno_WithMessage() {
	e := errors.ErrValidation.WithMessage("title must be 1-100 characters")
	fmt.Println(e.Code, e.MessageEN)
	// Output: 2101001 title must be 1-100 characters
}

// ExampleIsCode shows checking an error against a known code.
func ExampleIsCode() {
	var err error = errors.ErrDocumentNotFound.WithMessagef("document %q not found", "doc-1")
	fmt.Println(errors.IsCode(err, errors.ErrDocumentNotFound.Code))
	// Output: true
}

// ExampleParseCode shows decomposing a code into its parts.
func ExampleParseCode() {
	service, category, seq := errors.ParseCode(errors.ErrDocumentForbidden.Code)
	fmt.Println(service, category, seq)
	// Output: 21 3 1
}
