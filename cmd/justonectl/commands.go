package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/justone-api/internal/application/campus"
	fileapp "github.com/justone-api/internal/application/file"
	"github.com/justone-api/internal/application/response"
	"github.com/justone-api/internal/config"
	"github.com/justone-api/internal/domain"
	"github.com/justone-api/internal/infrastructure/dynamo"
	s3infra "github.com/justone-api/internal/infrastructure/s3"
	"github.com/justone-api/internal/pkg/encryption"
	"github.com/justone-api/internal/pkg/token"
	"github.com/spf13/cobra"
)

// runtime is what the commands need from the outside world.
type runtime interface {
	Bootstrap(ctx context.Context) error
	Campuses(ctx context.Context) (campus.Service, error)
	Responses(ctx context.Context) (response.Service, error)
}

type runtimeFactory func(cfg *config.Config) runtime

func newRootCmd(cfg *config.Config, newRuntime runtimeFactory) *cobra.Command {
	root := &cobra.Command{
		Use:           "justonectl",
		Short:         "Operational tasks for the JustOne API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newBootstrapCmd(cfg, newRuntime),
		newSeedCmd(cfg, newRuntime),
		newKeygenCmd(),
		newExportCmd(cfg, newRuntime),
	)
	return root
}

func newBootstrapCmd(cfg *config.Config, newRuntime runtimeFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Create missing DynamoDB tables and enable TTL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := newRuntime(cfg).Bootstrap(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "tables ready")
			return nil
		},
	}
}

func newSeedCmd(cfg *config.Config, newRuntime runtimeFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-campuses",
		Short: "Upsert campuses from the campus config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newRuntime(cfg).Campuses(cmd.Context())
			if err != nil {
				return err
			}
			n, err := svc.Seed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d campuses\n", n)
			return nil
		},
	}
}

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a fresh encryption secret and admin API key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc, err := token.NewSecret(32)
			if err != nil {
				return err
			}
			admin, err := token.NewSecret(32)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ENCRYPTION_KEY=%s\n", enc)
			fmt.Fprintf(out, "ENCRYPTION_KEY_ID=%s\n", encryption.KeyID(enc))
			fmt.Fprintf(out, "ADMIN_API_KEY=%s\n", admin)
			return nil
		},
	}
}

func newExportCmd(cfg *config.Config, newRuntime runtimeFactory) *cobra.Command {
	var (
		out          string
		campusID     string
		includePhoto bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Decrypt stored responses into a JSON file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newRuntime(cfg).Responses(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if out != "-" {
				f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			n, err := writeExport(cmd.Context(), svc, domain.ResponseFilter{CampusID: campusID, IncludePhoto: includePhoto}, w)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d responses\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "responses.json", "output file, - for stdout")
	cmd.Flags().StringVar(&campusID, "campus", "", "only export this campus")
	cmd.Flags().BoolVar(&includePhoto, "include-photo", false, "decrypt photos into the export")
	return cmd
}

// writeExport streams decrypted rows as a JSON array.
func writeExport(ctx context.Context, svc response.Service, f domain.ResponseFilter, w io.Writer) (int, error) {
	if _, err := io.WriteString(w, "["); err != nil {
		return 0, err
	}
	enc := json.NewEncoder(w)
	first := true
	n, err := svc.Export(ctx, f, func(row domain.DecryptedResponse) error {
		if !first {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		first = false
		return enc.Encode(row)
	})
	if err != nil {
		return n, fmt.Errorf("export responses: %w", err)
	}
	if _, err := io.WriteString(w, "]\n"); err != nil {
		return n, err
	}
	return n, nil
}

type awsRuntime struct {
	cfg *config.Config
}

func defaultRuntime(cfg *config.Config) runtime { return &awsRuntime{cfg: cfg} }

func (r *awsRuntime) dynamo(ctx context.Context) (*dynamodb.Client, error) {
	return dynamo.NewClient(ctx, r.cfg)
}

func (r *awsRuntime) Bootstrap(ctx context.Context) error {
	client, err := r.dynamo(ctx)
	if err != nil {
		return err
	}
	dynamo.Bootstrap(ctx, client, r.cfg.DynamoTables)
	return nil
}

func (r *awsRuntime) Campuses(ctx context.Context) (campus.Service, error) {
	campusCfg, err := config.LoadCampusConfig(r.cfg.CampusConfigPath, r.cfg.AdminEmails)
	if err != nil {
		return nil, err
	}
	client, err := r.dynamo(ctx)
	if err != nil {
		return nil, err
	}
	return campus.NewService(campus.ServiceDeps{
		CampusRepo: dynamo.NewCampusRepo(client, r.cfg.DynamoTables.Campuses),
		Config:     campusCfg,
	}), nil
}

func (r *awsRuntime) Responses(ctx context.Context) (response.Service, error) {
	cipher, err := encryption.NewCipher(r.cfg.EncryptionKey, []string{r.cfg.EncryptionKeyPrev}, r.cfg.PBKDF2Iterations)
	if err != nil {
		return nil, err
	}
	client, err := r.dynamo(ctx)
	if err != nil {
		return nil, err
	}
	s3Client, err := s3infra.NewClient(ctx, r.cfg)
	if err != nil {
		return nil, err
	}
	return response.NewService(response.ServiceDeps{
		ResponseRepo: dynamo.NewResponseRepo(client, r.cfg.DynamoTables.Responses),
		ProfileRepo:  dynamo.NewProfileRepo(client, r.cfg.DynamoTables.Profiles),
		Cipher:       cipher,
		Photos:       fileapp.NewService(s3infra.NewStore(s3Client, r.cfg.S3BucketName), cipher),
	}), nil
}
