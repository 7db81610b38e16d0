// Package project stores auxiliary project records per tenant.
//
// A project is a freeform record (required name, optional description and
// contact) that shares the tenant concept with the document corpus but is
// not part of the retrieval pipeline. The manager keeps records in memory
// keyed by UUID, with per-tenant listing; names are unique within a
// tenant, never across tenants.
package project
