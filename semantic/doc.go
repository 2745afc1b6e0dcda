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


// Package semantic coordinates the embedding-based search mode: the
// indexing request/progress lifecycle, toggle-cycle cancellation, and
// the single outstanding semantic query task.
//
// Progress is advisory. A positive outstanding-file count is used by
// callers as a readiness signal before issuing queries, not enforced
// here as an execution lock; the index may legitimately be queried while
// partially built.
package semantic
