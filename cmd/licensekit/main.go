package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/CloudNativeWorks/cnw-licensekit/licensekit"
	"github.com/CloudNativeWorks/cnw-licensekit/licensekit/issueregistry"
)

const registryTimeout = 10 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// Optional; a missing .env file is not an error.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	opts, err := Parse(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		ShowHelp(os.Stderr)
		return 1
	}
	if opts.HelpRequested {
		ShowHelp(os.Stdout)
		return 0
	}
	if err := opts.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	store := licensekit.NewStore()
	if err := store.LoadKeypair(opts.PrivateFilePath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	// With no action requested, show the keypair file's properties as
	// loaded; overrides only apply when saving or signing.
	if !opts.SaveKeypair && opts.LicenseFilePath == "" {
		printProperties(os.Stdout, store)
		return 0
	}

	if err := opts.ApplyOverrides(store); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if opts.SaveKeypair {
		if err := store.SaveKeypair(opts.PrivateFilePath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		logger.Info("keypair file saved", "path", opts.PrivateFilePath)
	}

	if opts.LicenseFilePath != "" {
		if err := store.SignFile(opts.LicenseFilePath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		logger.Info("license file signed",
			"path", opts.LicenseFilePath,
			"license_id", store.ID(),
			"product", store.Product())

		if opts.RegistryURI != "" {
			// The artifact is already signed; a registry failure is
			// logged but does not fail the issuance.
			if err := recordIssuance(opts.RegistryURI, store, opts.LicenseFilePath); err != nil {
				logger.Error("issuance registry update failed", "error", err)
			} else {
				logger.Info("issuance recorded", "license_id", store.ID())
			}
		}
	}
	return 0
}

// recordIssuance logs the signed artifact in a postgres or mongodb
// registry, selected by URI scheme.
func recordIssuance(uri string, store *licensekit.Store, licensePath string) error {
	ctx, cancel := context.WithTimeout(context.Background(), registryTimeout)
	defer cancel()

	reg, cleanup, err := openRegistry(ctx, uri)
	if err != nil {
		return err
	}
	defer cleanup()

	_, err = reg.Record(ctx, issueregistry.IssuedLicense{
		LicenseID:   store.ID(),
		ProductID:   store.ProductID(),
		Product:     store.Product(),
		Customer:    store.Name(),
		Email:       store.Email(),
		Type:        string(store.LicenseType()),
		Quantity:    store.Quantity(),
		ExpiresAt:   store.ExpirationDateUTC(),
		LicensePath: licensePath,
	})
	return err
}

func openRegistry(ctx context.Context, uri string) (issueregistry.Registry, func(), error) {
	if strings.HasPrefix(uri, "mongodb://") || strings.HasPrefix(uri, "mongodb+srv://") {
		client, err := mongo.Connect(mongooptions.Client().ApplyURI(uri))
		if err != nil {
			return nil, nil, fmt.Errorf("connect to mongodb registry: %w", err)
		}
		reg, err := issueregistry.NewMongoRegistry(ctx, client.Database("licensekit"))
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		return reg, func() { _ = client.Disconnect(context.Background()) }, nil
	}

	pool, err := pgxpool.New(ctx, uri)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres registry: %w", err)
	}
	reg, err := issueregistry.NewPostgresRegistry(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return reg, pool.Close, nil
}

// printProperties writes the keypair file's license terms to w; this is
// the default action when neither --save nor --license is given.
func printProperties(w io.Writer, store *licensekit.Store) {
	expiration := "None"
	if store.ExpirationDays() > 0 {
		expiration = fmt.Sprintf("%s (%d days)",
			store.ExpirationDateUTC().Format("2006-01-02"), store.ExpirationDays())
	}

	fmt.Fprintf(w, "Id:                  %s\n", store.ID())
	fmt.Fprintf(w, "Type:                %s\n", store.LicenseType())
	fmt.Fprintf(w, "Quantity:            %d\n", store.Quantity())
	fmt.Fprintf(w, "Expiration:          %s\n", expiration)
	fmt.Fprintf(w, "Product:             %s\n", store.Product())
	fmt.Fprintf(w, "Version:             %s\n", store.Version())
	fmt.Fprintf(w, "Publish Date:        %s\n", store.PublishDate())
	fmt.Fprintf(w, "Name:                %s\n", store.Name())
	fmt.Fprintf(w, "Email:               %s\n", store.Email())
	fmt.Fprintf(w, "Company:             %s\n", store.Company())
	fmt.Fprintf(w, "Product ID:          %s\n", store.ProductID())
	fmt.Fprintf(w, "Locked to assembly:  %t\n", store.IsLockedToAssembly())
	if store.PathAssembly() != "" {
		fmt.Fprintf(w, "Assembly path:       %s\n", store.PathAssembly())
	}
	printAttributeMap(w, "Product features", store.ProductFeatures())
	printAttributeMap(w, "License attributes", store.LicenseAttributes())
}

func printAttributeMap(w io.Writer, label string, m licensekit.AttributeMap) {
	if len(m) == 0 {
		return
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(w, "%s:\n", label)
	for _, name := range names {
		fmt.Fprintf(w, "  %s = %s\n", name, m[name])
	}
}
