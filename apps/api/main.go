package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/DawitTemesgen1/akilesiya-backend/apps/api/echo"
	"github.com/DawitTemesgen1/akilesiya-backend/core"
	"github.com/DawitTemesgen1/akilesiya-backend/core/attendance"
	"github.com/DawitTemesgen1/akilesiya-backend/core/audit"
	"github.com/DawitTemesgen1/akilesiya-backend/core/grade"
	"github.com/DawitTemesgen1/akilesiya-backend/core/permission"
	"github.com/DawitTemesgen1/akilesiya-backend/core/user"
	emailsvc "github.com/DawitTemesgen1/akilesiya-backend/services/email"
	logsvc "github.com/DawitTemesgen1/akilesiya-backend/services/logger"
	"github.com/DawitTemesgen1/akilesiya-backend/storage/database"
	sqlxrepos "github.com/DawitTemesgen1/akilesiya-backend/storage/database/sqlx"
)

func main() {
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	wd, err := os.Getwd()
	errAndDie(std, err)
	conf, err := core.NewConfig(wd)
	errAndDie(std, err)

	logger := logsvc.NewRollbarLogger(std, conf)
	logger.Enable(!(conf.Debug || conf.TestMode))

	// set up DB
	errAndDie(std, database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(std, err)
	defer func() { _ = db.Close() }()
	errAndDie(std, database.Migrate(db))

	// set up validation
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger, conf)
	}

	auditSvc := audit.NewService(sqlxrepos.NewAuditRepository(db))
	usrSvc := user.NewService(db, sqlxrepos.NewUserRepository(db), auditSvc, mailSvc, conf)
	permSvc := permission.NewService(db, sqlxrepos.NewPermissionRepository(db))
	attendanceSvc := attendance.NewService(db, sqlxrepos.NewAttendanceRepository(db), auditSvc)
	gradeSvc := grade.NewService(db, sqlxrepos.NewGradeRepository(db), auditSvc)

	// start API server
	app := echoapi.NewServer(&echoapi.Options{
		Addr:       conf.Server.Addr(),
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,

		UserSvc:       usrSvc,
		PermissionSvc: permSvc,
		AuditSvc:      auditSvc,
		AttendanceSvc: attendanceSvc,
		GradeSvc:      gradeSvc,
	})

	serverErrs := make(chan error, 1)
	go func() { serverErrs <- app.Start() }()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err = <-serverErrs:
		errAndDie(std, err)
	case sig := <-shutdown:
		logger.Info("shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err = app.Stop(ctx); err != nil {
			errAndDie(std, err)
		}
	}
}

func errAndDie(std *log.Logger, err error) {
	if err != nil {
		std.Fatal(err)
	}
}
