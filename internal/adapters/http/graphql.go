package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to the directory services.
// Fields resolve through the json tags of the domain types.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"latitude":  &graphql.Field{Type: graphql.Float},
			"longitude": &graphql.Field{Type: graphql.Float},
		},
	})

	businessType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Business",
		Fields: graphql.Fields{
			"id":              &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"name":            &graphql.Field{Type: graphql.String},
			"address":         &graphql.Field{Type: graphql.String},
			"city":            &graphql.Field{Type: graphql.String},
			"country":         &graphql.Field{Type: graphql.String},
			"email":           &graphql.Field{Type: graphql.String},
			"website":         &graphql.Field{Type: graphql.String},
			"secondary_url":   &graphql.Field{Type: graphql.String},
			"logo":            &graphql.Field{Type: graphql.String},
			"images":          &graphql.Field{Type: graphql.NewList(graphql.String)},
			"industry":        &graphql.Field{Type: graphql.String},
			"description":     &graphql.Field{Type: graphql.String},
			"location":        &graphql.Field{Type: coordinateType},
			"click_count":     &graphql.Field{Type: graphql.Int},
			"last_clicked_at": &graphql.Field{Type: graphql.DateTime},
			"distance":        &graphql.Field{Type: graphql.Float, Description: "Miles from the viewport center"},
		},
	})

	searchResultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SearchResult",
		Fields: graphql.Fields{
			"data": &graphql.Field{Type: graphql.NewList(businessType)},
			"status": &graphql.Field{
				Type:        graphql.String,
				Description: "ok, no_matches or out_of_range",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return string(p.Source.(*domain.SearchResult).Status), nil
				},
			},
			"page":          &graphql.Field{Type: graphql.Int},
			"page_size":     &graphql.Field{Type: graphql.Int},
			"has_next_page": &graphql.Field{Type: graphql.Boolean},
		},
	})

	globalDataType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GlobalData",
		Fields: graphql.Fields{
			"total_businesses": &graphql.Field{Type: graphql.Int},
			"refreshed_at":     &graphql.Field{Type: graphql.DateTime},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"searchBusinesses": &graphql.Field{
				Type:        searchResultType,
				Description: "Businesses inside a viewport, nearest to its center first",
				Args: graphql.FieldConfigArgument{
					"minLat":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"maxLat":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"minLong":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"maxLong":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"searchQuery": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"nPerPage":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: deps.Settings.DefaultPageSize},
					"pageNumber":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 1},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					bounds := domain.ViewportBounds{
						MinLat:  p.Args["minLat"].(float64),
						MaxLat:  p.Args["maxLat"].(float64),
						MinLong: p.Args["minLong"].(float64),
						MaxLong: p.Args["maxLong"].(float64),
					}
					if err := bounds.Validate(); err != nil {
						return nil, err
					}
					size := p.Args["nPerPage"].(int)
					if size > deps.Settings.MaxPageSize {
						size = deps.Settings.MaxPageSize
					}
					req, err := domain.NewSearchRequest(bounds, p.Args["searchQuery"].(string), p.Args["pageNumber"].(int), size)
					if err != nil {
						return nil, err
					}
					res, err := deps.Search.Execute(p.Context, req)
					if err != nil {
						return nil, err
					}
					out := *res
					out.Businesses = deps.Ranking.Rank(res.Businesses, bounds.Center())
					return &out, nil
				},
			},
			"business": &graphql.Field{
				Type:        businessType,
				Description: "A business by id",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Businesses.GetByID(p.Context, p.Args["id"].(string))
				},
			},
			"businesses": &graphql.Field{
				Type:        graphql.NewList(businessType),
				Description: "Several businesses by id; unknown ids are skipped",
				Args: graphql.FieldConfigArgument{
					"ids": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.String)))},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					raw := p.Args["ids"].([]interface{})
					ids := make([]string, 0, len(raw))
					for _, v := range raw {
						ids = append(ids, v.(string))
					}
					return deps.Businesses.GetByIDs(p.Context, ids)
				},
			},
			"topClicks": &graphql.Field{
				Type:        graphql.NewList(businessType),
				Description: "Most clicked businesses, optionally within radiusKm of lat/lng",
				Args: graphql.FieldConfigArgument{
					"limit":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 10},
					"lat":      &graphql.ArgumentConfig{Type: graphql.Float},
					"lng":      &graphql.ArgumentConfig{Type: graphql.Float},
					"radiusKm": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: deps.Settings.DefaultRadiusKm},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var near *domain.Coordinate
					lat, hasLat := p.Args["lat"].(float64)
					lng, hasLng := p.Args["lng"].(float64)
					if hasLat && hasLng {
						near = &domain.Coordinate{Latitude: lat, Longitude: lng}
					}
					return deps.Businesses.TopClicks(p.Context, p.Args["limit"].(int), near, p.Args["radiusKm"].(float64))
				},
			},
			"recentClicks": &graphql.Field{
				Type:        graphql.NewList(businessType),
				Description: "Most recently clicked businesses",
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 10},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Businesses.RecentClicks(p.Context, p.Args["limit"].(int))
				},
			},
			"globalData": &graphql.Field{
				Type:        globalDataType,
				Description: "Directory-wide totals",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Businesses.Stats(p.Context)
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"updateClickHistory": &graphql.Field{
				Type:        businessType,
				Description: "Record a click on a business",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Businesses.RecordClick(p.Context, p.Args["id"].(string))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil || req.Query == "" {
			return errBadRequest(c, "body must be JSON with a query")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.JSON(result)
	}
}
