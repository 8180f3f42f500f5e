package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	directorydomain "github.com/tempora-hq/tempora/internal/directory/domain"
	"github.com/tempora-hq/tempora/pkg/repository"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB *gorm.DB
}

type directory struct {
	people   repository.Repository[directorydomain.Person]
	clients  repository.Repository[directorydomain.Client]
	projects repository.Repository[directorydomain.Project]
}

func NewDirectory(p Params) directorydomain.Directory {
	return &directory{
		people:   repository.ProvideStore[directorydomain.Person](p.DB),
		clients:  repository.ProvideStore[directorydomain.Client](p.DB),
		projects: repository.ProvideStore[directorydomain.Project](p.DB),
	}
}

func (d *directory) Person(ctx context.Context, id snowflake.ID) (*directorydomain.Person, error) {
	person, err := d.people.FindOne(ctx, &directorydomain.Person{ID: id})
	if err != nil {
		return nil, err
	}
	if person == nil {
		return nil, directorydomain.ErrPersonNotFound
	}
	return person, nil
}

func (d *directory) Client(ctx context.Context, id snowflake.ID) (*directorydomain.Client, error) {
	client, err := d.clients.FindOne(ctx, &directorydomain.Client{ID: id})
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, directorydomain.ErrClientNotFound
	}
	return client, nil
}

func (d *directory) Project(ctx context.Context, id snowflake.ID) (*directorydomain.Project, error) {
	project, err := d.projects.FindOne(ctx, &directorydomain.Project{ID: id})
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, directorydomain.ErrProjectNotFound
	}
	return project, nil
}

func (d *directory) Projects(ctx context.Context, tenantID snowflake.ID) ([]*directorydomain.Project, error) {
	return d.projects.Find(ctx, &directorydomain.Project{TenantID: tenantID})
}

func (d *directory) ProjectsForClient(ctx context.Context, clientID snowflake.ID) ([]*directorydomain.Project, error) {
	return d.projects.Find(ctx, &directorydomain.Project{ClientID: clientID})
}
