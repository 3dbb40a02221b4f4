package resolver

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"sakila-graphql/internal/catalog"
)

// BuildGraphQLSchema builds the catalog query schema. Field names follow the
// Sakila column names the dashboard already consumes.
func (r *Resolver) BuildGraphQLSchema() (graphql.Schema, error) {
	genreType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "Genre",
		Description: "A film category.",
		Fields: graphql.Fields{
			"category_id": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					c, err := categorySource(p.Source)
					return c.ID, err
				},
			},
			"name": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					c, err := categorySource(p.Source)
					return c.Name, err
				},
			},
		},
	})

	actorType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Actor",
		Fields: graphql.Fields{
			"actor_id": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					a, err := actorSource(p.Source)
					return a.ID, err
				},
			},
			"first_name": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					a, err := actorSource(p.Source)
					return a.FirstName, err
				},
			},
			"last_name": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					a, err := actorSource(p.Source)
					return a.LastName, err
				},
			},
		},
	})

	movieType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "Movie",
		Description: "A film with its genre, cast and rental count.",
		Fields: graphql.Fields{
			"film_id": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					m, err := movieSource(p.Source)
					return m.ID, err
				},
			},
			"title": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					m, err := movieSource(p.Source)
					return m.Title, err
				},
			},
			"description": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					m, err := movieSource(p.Source)
					if err != nil || m.Description == nil {
						return nil, err
					}
					return *m.Description, nil
				},
			},
			"release_year": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					m, err := movieSource(p.Source)
					if err != nil || m.ReleaseYear == nil {
						return nil, err
					}
					return *m.ReleaseYear, nil
				},
			},
			"rating": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					m, err := movieSource(p.Source)
					if err != nil || m.Rating == nil {
						return nil, err
					}
					return *m.Rating, nil
				},
			},
			"genre": &graphql.Field{
				Type: genreType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					m, err := movieSource(p.Source)
					if err != nil || !m.Genre.Found {
						return nil, err
					}
					return m.Genre.Category, nil
				},
			},
			"actors": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(actorType))),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					m, err := movieSource(p.Source)
					if err != nil {
						return nil, err
					}
					return r.MovieActors(p.Context, m)
				},
			},
			"rentalCount": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					m, err := movieSource(p.Source)
					return m.RentalCount, err
				},
			},
		},
	})

	moviePageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MoviePage",
		Fields: graphql.Fields{
			"movies": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(movieType))),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					page, ok := p.Source.(MoviePage)
					if !ok {
						return nil, unexpectedSource("MoviePage", p.Source)
					}
					return page.Movies, nil
				},
			},
			"hasMore": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					page, ok := p.Source.(MoviePage)
					if !ok {
						return nil, unexpectedSource("MoviePage", p.Source)
					}
					return page.HasMore, nil
				},
			},
		},
	})

	genreGroupType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "GenreGroup",
		Description: "Movies sharing a genre and their mean rental count.",
		Fields: graphql.Fields{
			"genre": &graphql.Field{
				Type: graphql.NewNonNull(genreType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					g, err := groupSource(p.Source)
					return g.Genre, err
				},
			},
			"movies": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(movieType))),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					g, err := groupSource(p.Source)
					return g.Movies, err
				},
			},
			"averageRentalCount": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Float),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					g, err := groupSource(p.Source)
					return g.AverageRentalCount, err
				},
			},
		},
	})

	moviesByCategoryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MoviesByCategory",
		Fields: graphql.Fields{
			"moviesByCategory": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(genreGroupType))),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					groups, ok := p.Source.([]GenreGroup)
					if !ok {
						return nil, unexpectedSource("[]GenreGroup", p.Source)
					}
					return groups, nil
				},
			},
		},
	})

	genreCountType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GenreCount",
		Fields: graphql.Fields{
			"genre": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					gc, ok := p.Source.(catalog.GenreCount)
					if !ok {
						return nil, unexpectedSource("GenreCount", p.Source)
					}
					return gc.Genre, nil
				},
			},
			"count": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					gc, ok := p.Source.(catalog.GenreCount)
					if !ok {
						return nil, unexpectedSource("GenreCount", p.Source)
					}
					return gc.Count, nil
				},
			},
		},
	})

	averageRentalCountType := graphql.NewObject(graphql.ObjectConfig{
		Name: "AverageRentalCount",
		Fields: graphql.Fields{
			"genre": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					avg, ok := p.Source.(catalog.AverageRentalCount)
					if !ok {
						return nil, unexpectedSource("AverageRentalCount", p.Source)
					}
					return avg.Genre, nil
				},
			},
			"averageRentalCount": &graphql.Field{
				Type: graphql.Float,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					avg, ok := p.Source.(catalog.AverageRentalCount)
					if !ok {
						return nil, unexpectedSource("AverageRentalCount", p.Source)
					}
					return avg.AverageRentalCount, nil
				},
			},
		},
	})

	filterArg := func(description string) *graphql.ArgumentConfig {
		return &graphql.ArgumentConfig{Type: graphql.String, Description: description}
	}
	const ratingHelp = `Film rating such as "PG-13". Omit or pass "All" for every rating.`
	const genreHelp = `Category name. Omit or pass "All" for every genre.`

	queryFields := graphql.Fields{
		"movies": &graphql.Field{
			Type:        graphql.NewNonNull(moviePageType),
			Description: "Films ordered by id with genre, cast and rental count.",
			Args: graphql.FieldConfigArgument{
				"genreName": filterArg(genreHelp),
				"rating":    filterArg(ratingHelp),
				"limit": &graphql.ArgumentConfig{
					Type:         graphql.Int,
					DefaultValue: r.opts.DefaultPageSize,
				},
				"offset": &graphql.ArgumentConfig{
					Type:         graphql.Int,
					DefaultValue: 0,
				},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				args := MoviesArgs{
					Genre:  stringArg(p.Args, "genreName"),
					Rating: stringArg(p.Args, "rating"),
				}
				if limit, ok := p.Args["limit"].(int); ok {
					args.Limit = &limit
				}
				if offset, ok := p.Args["offset"].(int); ok {
					args.Offset = offset
				}
				return r.Movies(p.Context, args)
			},
		},
		"movie": &graphql.Field{
			Type: movieType,
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				id, _ := p.Args["id"].(int)
				movie, err := r.Movie(p.Context, int64(id))
				if err != nil {
					return nil, err
				}
				return movie, nil
			},
		},
		"actors": &graphql.Field{
			Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(actorType))),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return r.Actors(p.Context)
			},
		},
		"moviesByCategory": &graphql.Field{
			Type:        graphql.NewNonNull(moviesByCategoryType),
			Description: "Films grouped by genre with the mean rental count of each group.",
			Args: graphql.FieldConfigArgument{
				"rating": filterArg(ratingHelp),
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				groups, err := r.MoviesByCategory(p.Context, stringArg(p.Args, "rating"))
				if err != nil {
					return nil, err
				}
				return groups, nil
			},
		},
		"movieCountsByGenre": &graphql.Field{
			Type: graphql.NewList(genreCountType),
			Args: graphql.FieldConfigArgument{
				"rating": filterArg(ratingHelp),
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return r.MovieCountsByGenre(p.Context, stringArg(p.Args, "rating"))
			},
		},
		"movieTitles": &graphql.Field{
			Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.String))),
			Args: graphql.FieldConfigArgument{
				"rating": filterArg(ratingHelp),
				"genre":  filterArg(genreHelp),
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return r.MovieTitles(p.Context, stringArg(p.Args, "rating"), stringArg(p.Args, "genre"))
			},
		},
		"averageRentalCount": &graphql.Field{
			Type: graphql.NewList(averageRentalCountType),
			Args: graphql.FieldConfigArgument{
				"rating": filterArg(ratingHelp),
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return r.AverageRentalCount(p.Context, stringArg(p.Args, "rating"))
			},
		},
	}

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: queryFields,
		}),
	})
}

func stringArg(args map[string]interface{}, key string) string {
	if args == nil {
		return ""
	}
	s, _ := args[key].(string)
	return s
}

func unexpectedSource(want string, got interface{}) error {
	return fmt.Errorf("expected %s source, got %T", want, got)
}

func movieSource(src interface{}) (Movie, error) {
	switch m := src.(type) {
	case Movie:
		return m, nil
	case *Movie:
		if m != nil {
			return *m, nil
		}
	}
	return Movie{}, unexpectedSource("Movie", src)
}

func categorySource(src interface{}) (catalog.Category, error) {
	switch c := src.(type) {
	case catalog.Category:
		return c, nil
	case *catalog.Category:
		if c != nil {
			return *c, nil
		}
	}
	return catalog.Category{}, unexpectedSource("Genre", src)
}

func actorSource(src interface{}) (catalog.Actor, error) {
	switch a := src.(type) {
	case catalog.Actor:
		return a, nil
	case *catalog.Actor:
		if a != nil {
			return *a, nil
		}
	}
	return catalog.Actor{}, unexpectedSource("Actor", src)
}

func groupSource(src interface{}) (GenreGroup, error) {
	switch g := src.(type) {
	case GenreGroup:
		return g, nil
	case *GenreGroup:
		if g != nil {
			return *g, nil
		}
	}
	return GenreGroup{}, unexpectedSource("GenreGroup", src)
}
