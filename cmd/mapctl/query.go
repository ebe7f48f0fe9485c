package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/supportyourlocal/mapdir/internal/adapters/storage"
	"github.com/supportyourlocal/mapdir/internal/core/domain"
	"github.com/supportyourlocal/mapdir/internal/core/usecases"
	"github.com/supportyourlocal/mapdir/internal/pkg/cluster"
	"github.com/supportyourlocal/mapdir/internal/pkg/config"
)

type viewportFlags struct {
	bounds   domain.ViewportBounds
	query    string
	pageSize int
}

func (f *viewportFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.bounds.MinLat, "min-lat", 0, "South edge")
	cmd.Flags().Float64Var(&f.bounds.MaxLat, "max-lat", 0, "North edge")
	cmd.Flags().Float64Var(&f.bounds.MinLong, "min-long", 0, "West edge")
	cmd.Flags().Float64Var(&f.bounds.MaxLong, "max-long", 0, "East edge")
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "Name substring")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 100, "Records per page")
	for _, name := range []string{"min-lat", "max-lat", "min-long", "max-long"} {
		_ = cmd.MarkFlagRequired(name)
	}
}

// search opens the configured store and runs one viewport search.
func (f *viewportFlags) search(ctx context.Context, page int) (*domain.SearchResult, error) {
	req, err := domain.NewSearchRequest(f.bounds, f.query, page, f.pageSize)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load("mapdir-ctl")
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	svc := usecases.NewSearchService(store.Businesses, nil, cfg.Search.MaxRangeMiles, 0)
	return svc.Execute(ctx, req)
}

func newSearchCmd() *cobra.Command {
	var (
		vf   viewportFlags
		page int
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the store for businesses inside a viewport",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			res, err := vf.search(ctx, page)
			if err != nil {
				return err
			}
			res.Businesses = usecases.NewRankingService().Rank(res.Businesses, vf.bounds.Center())
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	vf.register(cmd)
	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page number, from 1")
	return cmd
}

func newClustersCmd() *cobra.Command {
	var (
		vf   viewportFlags
		zoom int
	)
	cmd := &cobra.Command{
		Use:   "clusters",
		Short: "Cluster a viewport's first page and print GeoJSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			res, err := vf.search(ctx, 1)
			if err != nil {
				return err
			}
			ix := cluster.New(cluster.DefaultOptions())
			ix.Build(res.Businesses, zoom)
			return printJSON(cmd.OutOrStdout(), ix.GeoJSON())
		},
	}
	vf.register(cmd)
	cmd.Flags().IntVarP(&zoom, "zoom", "z", 12, "Map zoom level")
	return cmd
}
