package errors

import "strings"

// List accumulates errors from paths where more than one thing can fail
// and all of them are worth reporting.
type List []error

func NewList(errors ...error) List {
	return List(nil).Add(errors...)
}

func (e List) Add(errors ...error) List {
	for _, err := range errors {
		if err == nil {
			continue
		}

		e = append(e, err)
	}

	return e
}

// Err returns the list as an error, or nil when nothing failed.
func (e List) Err() error {
	if len(e) == 0 {
		return nil
	}

	return e
}

func (e List) Error() string {
	var slist []string
	for _, err := range e {
		slist = append(slist, err.Error())
	}
	return strings.Join(slist, ", ")
}
