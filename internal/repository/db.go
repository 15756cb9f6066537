package repository

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// Queryer subset of sqlx shared by *sqlx.DB and *sqlx.Tx.
// Repositories are bound to one of the two, so the same implementation
// serves both plain and transactional access.
type Queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Repos all entity repositories bound to one Queryer
type Repos struct {
	Categories    CategoryRepository
	Forums        ForumRepository
	Topics        TopicRepository
	Posts         PostRepository
	Trackers      TrackerRepository
	Polls         PollRepository
	Subscriptions SubscriptionRepository
}

// NewRepos binds all repositories to q
func NewRepos(q Queryer) Repos {
	return Repos{
		Categories:    NewCategoryRepository(q),
		Forums:        NewForumRepository(q),
		Topics:        NewTopicRepository(q),
		Posts:         NewPostRepository(q),
		Trackers:      NewTrackerRepository(q),
		Polls:         NewPollRepository(q),
		Subscriptions: NewSubscriptionRepository(q),
	}
}

// Atomic runs a function against transaction-bound repositories.
// The whole function either commits or rolls back; counter updates and the
// row mutations that trigger them always share one transaction.
type Atomic interface {
	Do(ctx context.Context, fn func(r Repos) error) error
}

type sqlAtomic struct {
	db *sqlx.DB
}

// NewAtomic creates an Atomic backed by sqlx transactions
func NewAtomic(db *sqlx.DB) Atomic {
	return &sqlAtomic{db: db}
}

func (a *sqlAtomic) Do(ctx context.Context, fn func(r Repos) error) error {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(NewRepos(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

// MySQL error numbers
const (
	mysqlErrDuplicateEntry = 1062
	mysqlErrDeadlock       = 1213
)

// IsDuplicateKey reports whether err is a unique-constraint violation
func IsDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlErrDuplicateEntry
}

// IsRetryable reports whether err is a transient conflict worth one retry
// (deadlock between concurrent upserts under REPEATABLE READ).
func IsRetryable(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlErrDeadlock
}
