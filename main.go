package main

import (
	"github.com/convoyapp/convoy/config"
	"github.com/convoyapp/convoy/models"
	"github.com/convoyapp/convoy/routes"
	"github.com/convoyapp/convoy/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.User{}, &models.FollowerEdge{}, &models.FollowingEdge{},
		&models.Post{}, &models.Comment{}, &models.Reply{}, &models.Like{}, &models.Dislike{},
		&models.Music{}, &models.PlaylistEntry{},
	)

	r := routes.SetupRouter(db, utils.SMTPMailer{})

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
