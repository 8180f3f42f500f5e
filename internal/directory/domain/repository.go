package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Directory is the read surface billing depends on.
type Directory interface {
	Person(ctx context.Context, id snowflake.ID) (*Person, error)
	Client(ctx context.Context, id snowflake.ID) (*Client, error)
	Project(ctx context.Context, id snowflake.ID) (*Project, error)
	Projects(ctx context.Context, tenantID snowflake.ID) ([]*Project, error)
	ProjectsForClient(ctx context.Context, clientID snowflake.ID) ([]*Project, error)
}

var (
	ErrPersonNotFound  = errors.New("person_not_found")
	ErrClientNotFound  = errors.New("client_not_found")
	ErrProjectNotFound = errors.New("project_not_found")
)
