package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/identity"
	"github.com/trezcool/elimu/core/school"
	logsvc "github.com/trezcool/elimu/services/logger"
	"github.com/trezcool/elimu/storage/database"
	dummydb "github.com/trezcool/elimu/storage/database/dummy"
	sqlxrepos "github.com/trezcool/elimu/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	logger = logsvc.New("ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile, conf)
	errAndDie(conf.Validate())

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	school.InitValidators(validate, translator)

	codec, err := identity.NewCodec(conf.Identity.Codec, conf.Identity.PassPhrase)
	errAndDie(err)

	cli := commandLine{codec: codec, out: os.Stdout}
	switch {
	case len(os.Args) > 1 && os.Args[1] == "token": // no storage needed
	case conf.Database.Engine == core.EngineMemory:
		cli.svc = school.NewService(dummydb.NewSchoolRepository(dummydb.Open()), validate, translator)
	default:
		errAndDie(database.CreateIfNotExist(context.Background(), conf))
		db, err := database.Open(conf)
		errAndDie(err)
		cli.db = db
		cli.svc = school.NewService(sqlxrepos.NewSchoolRepository(db), validate, translator)
	}

	err = cli.run(os.Args)
	if cli.db != nil {
		_ = cli.db.Close()
	}
	if err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
