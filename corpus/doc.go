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


// Package corpus provides the versioned document store searches run
// against. Documents may be edited concurrently with in-flight searches;
// positions are expressed as version-stamped anchors and resolved through
// a per-document edit log so already-streamed results stay valid.
//
// The Watcher keeps a store synchronized with on-disk changes via
// fsnotify, treating each file write as a whole-document edit.
package corpus
