package port

import "context"

// RepositorySet bundles the registry repositories so a unit of work can run
// them against one transaction.
type RepositorySet struct {
	Parents       ParentRepository
	Records       RecordRepository
	Drafts        DraftRepository
	VersionStates VersionStateRepository
}

// TransactionManager runs a function with a repository set bound to a single
// database transaction. The transaction commits iff fn returns nil.
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos RepositorySet) error) error
}
