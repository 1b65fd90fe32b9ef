// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of gcp-utils-go.
//
// gcp-utils-go is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"errors"

	"github.com/cordada/gcp-utils-go/pkg/gcperrors"
	"github.com/cordada/gcp-utils-go/pkg/gcpkms"
	"github.com/cordada/gcp-utils-go/pkg/kmsmock"
)

// Process exit codes
const (
	ExitOK                   = 0
	ExitFailure              = 1
	ExitUsage                = 2
	ExitAuth                 = 3
	ExitPermissionDenied     = 4
	ExitNotFound             = 5
	ExitAlreadyExists        = 6
	ExitUnrecognizedAPIError = 7
)

// usage marks errors caused by invalid input or configuration
type usage struct {
	err error
}

func usageError(err error) error {
	return &usage{err: err}
}

func (u *usage) Error() string { return u.err.Error() }

func (u *usage) Unwrap() error { return u.err }

// ExitCode maps an error returned by a command to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	if kind, ok := gcperrors.KindOf(err); ok {
		switch kind {
		case gcperrors.KindAuth:
			return ExitAuth
		case gcperrors.KindResourcePermissionDenied:
			return ExitPermissionDenied
		case gcperrors.KindResourceNotFound:
			return ExitNotFound
		case gcperrors.KindAlreadyExists:
			return ExitAlreadyExists
		case gcperrors.KindUnrecognizedAPI, gcperrors.KindUnrecognizedAPIHTTP:
			return ExitUnrecognizedAPIError
		}
	}

	var u *usage
	switch {
	case errors.As(err, &u),
		errors.Is(err, gcpkms.ErrPlainDataTooLarge),
		errors.Is(err, kmsmock.ErrInvalidKeyInput):
		return ExitUsage
	default:
		return ExitFailure
	}
}
