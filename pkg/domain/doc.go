// Package domain defines the shared vocabulary of celerix-store.
//
// It holds no IO and is imported by every layer:
//
//   - Errors: the DomainError taxonomy, carried verbatim over the wire
//   - Identifiers: Persona and App name validation, the reserved system persona
package domain
