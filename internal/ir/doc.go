// Package ir holds the data model shared by every other cronrun package:
// decoded argument literals, parsed call expressions, per-call outcomes and
// the batch they belong to.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - literals are Integer, Text, Boolean or Structured
//   - Structured payloads are the sealed IRValue union, never bare `any`
//   - Journal identity uses RFC 8785 canonical JSON (canonical.go, hash.go)
package ir
