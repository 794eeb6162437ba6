// Package services holds cross-cutting service plumbing: the sentinel error
// taxonomy shared by every pipeline component and context helpers that carry
// session/component/request identity through call chains.
package services
