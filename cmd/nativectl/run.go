package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/nativebox/internal/config"
	"github.com/danmuck/nativebox/internal/loader"
	"github.com/danmuck/nativebox/internal/native"
	"github.com/danmuck/nativebox/internal/resource"
	"github.com/danmuck/nativebox/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const defaultManifest = "nativebox.toml"

func newRunCmd() *cobra.Command {
	var (
		manifestPath string
		serve        bool
		addr         string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Stage every manifest artifact and load the ones marked load",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := config.LoadManifest(manifestPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				m.Server.Addr = addr
			}
			return runManifest(cmd.Context(), m, cmd.OutOrStdout(), serve)
		},
	}
	cmd.Flags().StringVarP(&manifestPath, "config", "c", defaultManifest, "manifest path")
	cmd.Flags().BoolVar(&serve, "serve", false, "serve the status API until interrupted")
	cmd.Flags().StringVar(&addr, "addr", "", "status API listen address (overrides [server].addr)")
	return cmd
}

func newStageCmd() *cobra.Command {
	var (
		manifestPath string
		keep         bool
	)
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Stage every manifest artifact without loading",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := config.LoadManifest(manifestPath)
			if err != nil {
				return err
			}
			return stageManifest(cmd.Context(), m, cmd.OutOrStdout(), keep)
		},
	}
	cmd.Flags().StringVarP(&manifestPath, "config", "c", defaultManifest, "manifest path")
	cmd.Flags().BoolVar(&keep, "keep", false, "leave the staging directory in place")
	return cmd
}

func runManifest(ctx context.Context, m config.Manifest, out io.Writer, serve bool) (err error) {
	if serve && strings.TrimSpace(m.Server.Addr) == "" {
		return fmt.Errorf("--serve needs [server].addr or --addr")
	}
	repo, err := openRepository(m)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := repo.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	artifacts, err := repo.StoreAll(ctx, specsFor(m))
	if err != nil {
		return err
	}
	var toLoad []*native.Artifact
	for i, a := range m.Artifacts {
		if a.ShouldLoad() {
			toLoad = append(toLoad, artifacts[i])
		}
	}
	if err := repo.LoadAll(ctx, toLoad); err != nil {
		return err
	}
	printArtifacts(out, repo)

	if !serve {
		return nil
	}
	opts := server.Options{
		Token:   m.Server.Token,
		TLSCert: m.Server.TLSCert,
		TLSKey:  m.Server.TLSKey,
	}
	return server.New(m.Server.Name, repo, opts).Serve(ctx, m.Server.Addr)
}

func stageManifest(ctx context.Context, m config.Manifest, out io.Writer, keep bool) (err error) {
	repo, err := openRepository(m)
	if err != nil {
		return err
	}
	if keep {
		repo.Keep()
	} else {
		defer func() {
			if cerr := repo.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
	}
	if _, err := repo.StoreAll(ctx, specsFor(m)); err != nil {
		return err
	}
	printArtifacts(out, repo)
	if keep {
		fmt.Fprintf(out, "kept %s\n", repo.Dir())
	}
	return nil
}

func openRepository(m config.Manifest) (*native.Repository, error) {
	cfg := native.Config{
		Dir:         m.Repository.Dir,
		TempRoot:    m.Repository.TempRoot,
		Parallelism: m.Repository.Parallelism,
	}
	ld, err := loader.ByKind(m.Loader.Kind)
	if err != nil {
		return nil, err
	}
	cfg.Loader = ld
	if m.Repository.Resources != "" {
		cfg.Source = resource.Dir(m.Repository.Resources)
	}

	var repo *native.Repository
	if cfg.Dir == "" {
		repo, err = native.NewTemp(cfg)
	} else {
		repo, err = native.New(cfg)
	}
	if err != nil {
		return nil, err
	}
	log.Info().Str("dir", repo.Dir()).Str("loader", m.Loader.Kind).Int("artifacts", len(m.Artifacts)).Msg("repository ready")
	return repo, nil
}

func specsFor(m config.Manifest) []native.Spec {
	specs := make([]native.Spec, 0, len(m.Artifacts))
	for _, a := range m.Artifacts {
		specs = append(specs, native.Spec{Namespace: a.Namespace, Name: a.Name, SourcePath: a.Source})
	}
	return specs
}

func printArtifacts(out io.Writer, repo *native.Repository) {
	for _, a := range repo.Artifacts() {
		info := a.Info()
		fmt.Fprintf(out, "%-8s %s/%s %d %s\n", info.State, info.Namespace, info.Name, info.Size, info.Digest)
	}
}
