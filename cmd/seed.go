package cmd

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	agencyapp "github.com/tkamdem/livrazone/agency/application"
	agencydomain "github.com/tkamdem/livrazone/agency/domain"
	agencyrepo "github.com/tkamdem/livrazone/agency/repository"
	"github.com/tkamdem/livrazone/core/config"
	"github.com/tkamdem/livrazone/core/database"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the super-admin and a default agency",
	Long: `Seeds the database with the super-admin account taken from
ADMIN_EMAIL / ADMIN_PASSWORD and one default agency. Safe to re-run:
existing accounts are left untouched.`,
	Run: seedDatabase,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func seedDatabase(_ *cobra.Command, _ []string) {
	cfg := config.Global
	if cfg.Auth.AdminEmail == "" || cfg.Auth.AdminSecret == "" {
		logrus.Fatalln("[SEED] ADMIN_EMAIL and ADMIN_PASSWORD are required")
	}

	ctx := context.Background()
	orm, err := database.New(cfg)
	if err != nil {
		logrus.Fatalf("[SEED] Database connection failed: %v", err)
	}

	repo := agencyrepo.NewAgencyGormRepository(orm)
	if err := repo.InitSchema(ctx); err != nil {
		logrus.Fatalf("[SEED] Schema initialization failed: %v", err)
	}
	service := agencyapp.NewAgencyService(repo)

	if _, err := repo.GetByEmail(ctx, cfg.Auth.AdminEmail); err == nil {
		logrus.Info("[SEED] Super-admin already exists, nothing to do")
		return
	} else if !errors.Is(err, agencydomain.ErrAgencyNotFound) {
		logrus.Fatalf("[SEED] Lookup failed: %v", err)
	}

	admin, err := service.Create(ctx, agencyapp.CreateAgencyInput{
		Name:     "Platform Admin",
		Email:    cfg.Auth.AdminEmail,
		Password: cfg.Auth.AdminSecret,
		Role:     agencydomain.RoleSuperAdmin,
	})
	if err != nil {
		logrus.Fatalf("[SEED] Failed to create super-admin: %v", err)
	}
	logrus.Infof("[SEED] Created super-admin %d (%s)", admin.ID, admin.Email)

	agency, err := service.Create(ctx, agencyapp.CreateAgencyInput{
		Name:     "Default Agency",
		Email:    "agency@" + domainOf(cfg.Auth.AdminEmail),
		Password: cfg.Auth.AdminSecret,
		Code:     "DEFAULT",
	})
	if err != nil {
		logrus.Warnf("[SEED] Default agency not created: %v", err)
		return
	}
	logrus.Infof("[SEED] Created default agency %d; set DEFAULT_AGENCY_ID=%d to pin auto-provisioning", agency.ID, agency.ID)
}

func domainOf(email string) string {
	for i := len(email) - 1; i >= 0; i-- {
		if email[i] == '@' {
			return email[i+1:]
		}
	}
	return "example.com"
}
