package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/labtrack/labtrack_backend/internal/config"
	"github.com/labtrack/labtrack_backend/internal/controllers"
	"github.com/labtrack/labtrack_backend/internal/middleware"
	"github.com/labtrack/labtrack_backend/internal/ws"
)

func Register(r *gin.Engine, db *gorm.DB, cfg *config.Config, hub *ws.SessionHub) {
	expiresMins, err := time.ParseDuration(cfg.JWTExpiresIn + "m")
	if err != nil || expiresMins == 0 {
		expiresMins = 60 * time.Minute
	}

	authCtrl := &controllers.AuthController{DB: db, JWTSecret: cfg.JWTSecret, ExpiresIn: expiresMins}
	labCtrl := &controllers.LabController{DB: db}
	machineCtrl := &controllers.MachineController{DB: db}
	sessionCtrl := &controllers.SessionController{DB: db, Hub: hub}
	taskCtrl := &controllers.TaskController{DB: db}

	authMW := middleware.AuthMiddleware(db, cfg.JWTSecret)
	apiKeyMW := middleware.RequireAPIKey(cfg.WebAPIKey)

	// Account endpoints; no api-key, the web frontend talks to these.
	auth := r.Group("/auth")
	{
		auth.POST("/register", authCtrl.Register)
		auth.POST("/token", authCtrl.Login)
	}
	users := r.Group("/users", authMW)
	{
		users.GET("/me", authCtrl.Me)
		users.GET("/me/labs", authCtrl.MyLabs)
	}

	// Lab endpoints. Reads are api-key only (kiosk projections);
	// mutations additionally require a lab member.
	lab := r.Group("/lab", apiKeyMW)
	{
		lab.GET("/:lab_id", labCtrl.GetLab)
		lab.GET("/:lab_id/machines", labCtrl.GetMachinesForLab)
		lab.GET("/:lab_id/students", labCtrl.GetStudentsForLab)
		lab.GET("/:lab_id/users", labCtrl.GetUsersForLab)

		lab.POST("/new_lab", authMW, labCtrl.CreateLab)
		lab.PATCH("/update/:lab_id", authMW, labCtrl.UpdateLab)
		lab.DELETE("/delete/:lab_id", authMW, labCtrl.DeleteLab)
		lab.POST("/join/:lab_id", authMW, labCtrl.JoinLab)
	}

	// Machine registration and the bulk update stay api-key only so a
	// kiosk can self-register before any user exists.
	machine := r.Group("/machine_config", apiKeyMW)
	{
		machine.GET("/:machine_key", machineCtrl.GetMachineConfig)
		machine.POST("/new_machine", machineCtrl.PostNewMachineConfig)
		machine.PATCH("/update/:machine_key", machineCtrl.UpdateMachineConfig)

		machine.DELETE("/delete/:machine_key", authMW, machineCtrl.DeleteMachine)
		machine.PATCH("/update/:machine_key/last_check", authMW, machineCtrl.UpdateLastCheck)
		machine.PATCH("/update/:machine_key/state_cleanliness", authMW, machineCtrl.UpdateStateCleanliness)
	}

	session := r.Group("/session", apiKeyMW)
	{
		session.POST("/new/:machine_key", sessionCtrl.NewSession)
		session.GET("/lab/:lab_id", sessionCtrl.GetSessionsForLab)
		session.GET("/machine/:machine_key", sessionCtrl.GetSessionsForMachine)
		session.GET("/student/:student_id", sessionCtrl.GetSessionsForStudent)
	}

	tasks := r.Group("/tasks", apiKeyMW, authMW)
	{
		tasks.POST("/new", taskCtrl.NewTask)
		tasks.GET("/lab/:lab_id", taskCtrl.GetTasksForLab)
		tasks.GET("/machine/:machine_key", taskCtrl.GetTasksForMachine)
		tasks.POST("/complete/:task_id", taskCtrl.CompleteTask)
	}

	// Live session feed for lab dashboards.
	if hub != nil {
		r.GET("/ws/lab/:lab_id", authMW, ws.SessionMonitorHandler(db, hub))
	}
}
