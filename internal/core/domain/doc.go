// Package domain contains the core business entities for ragchat:
// documents and chunks, model deployments, conversation turns and
// session state, and the error taxonomy. It has no dependencies on
// adapters or infrastructure.
package domain
