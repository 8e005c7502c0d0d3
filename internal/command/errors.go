package command

import (
	"errors"
	"fmt"

	"tfvc/internal/itemspec"
	"tfvc/internal/option"
)

// Class groups failures by what the user has to fix.
type Class int

const (
	ClassNone Class = iota
	ClassArgument
	ClassOption
	ClassSpec
	ClassUnknownCommand
	ClassUnderlying
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassArgument:
		return "argument error"
	case ClassOption:
		return "option error"
	case ClassSpec:
		return "invalid item spec"
	case ClassUnknownCommand:
		return "unknown command"
	default:
		return "error"
	}
}

// UnknownCommandError is returned for a name no command is registered under.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unrecognized command: %s", e.Name)
}

// ArgumentError reports free arguments a command cannot use.
type ArgumentError struct {
	Command string
	Msg     string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Msg)
}

// Classify returns the class of err.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}

	var unknown *UnknownCommandError
	if errors.As(err, &unknown) {
		return ClassUnknownCommand
	}
	var argErr *ArgumentError
	if errors.As(err, &argErr) {
		return ClassArgument
	}
	var resErr *option.ResolutionError
	if errors.As(err, &resErr) {
		if resErr.Reason == option.InvalidFreeArgumentCount {
			return ClassArgument
		}
		return ClassOption
	}
	var specErr *itemspec.SpecError
	if errors.As(err, &specErr) {
		if specErr.Reason == itemspec.WrongArgumentCount {
			return ClassArgument
		}
		return ClassSpec
	}
	return ClassUnderlying
}

// ExitForError maps a failure to its exit code.
func ExitForError(err error) ExitCode {
	switch Classify(err) {
	case ClassNone:
		return ExitSuccess
	case ClassUnknownCommand:
		return ExitUnrecognizedCommand
	default:
		return ExitFailure
	}
}
