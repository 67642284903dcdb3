/*
Copyright 2025 The Flux authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package artifact manages the local release archives of the publisher.
//
// Configuration Management (config pkg):
//   - Flag binding with environment variable support for all publisher options
//   - YAML config file loading with flag > env > file > default precedence
//   - Credentials are read from the environment only
//
// Storage Management (storage pkg):
//   - Daily retention of the local artifact directory
//   - Version allocation in the form '<date><zero-padded sequence>'
//   - Atomic zip archiving of the build output with gitignore style filtering
//   - Secure path handling to prevent directory traversal attacks
package artifact
