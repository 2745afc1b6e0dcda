// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "errors"

// Query validation errors
var (
	// ErrInvalidPattern indicates the query text failed to compile as a
	// regular expression.
	ErrInvalidPattern = errors.New("invalid search pattern")

	// ErrInvalidGlob indicates an include or exclude filter segment
	// failed to compile as a glob.
	ErrInvalidGlob = errors.New("invalid file glob")

	// ErrEmptyPattern indicates the query text is empty.
	ErrEmptyPattern = errors.New("search pattern cannot be empty")
)
