// Package crawler defines the domain types and collaborator interfaces shared by
// the frontier, scheduler, expander, fetchers and stores of the sale-shoe
// crawler. It holds no orchestration logic of its own.
package crawler
