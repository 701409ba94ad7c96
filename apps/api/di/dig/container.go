package dig_container

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/elimu/apps/api/echo"
	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/curriculum"
	"github.com/trezcool/elimu/core/identity"
	"github.com/trezcool/elimu/core/school"
	cachesvc "github.com/trezcool/elimu/services/cache"
	emailsvc "github.com/trezcool/elimu/services/email"
	logsvc "github.com/trezcool/elimu/services/logger"
	"github.com/trezcool/elimu/storage/database"
	dummydb "github.com/trezcool/elimu/storage/database/dummy"
	sqlxrepos "github.com/trezcool/elimu/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// ClosersParam collects what must be closed on shutdown.
type ClosersParam struct {
	dig.In
	Closers []io.Closer `group:"closers"`
}

type storage struct {
	dig.Out
	SchoolRepo   school.Repository
	ProgressRepo curriculum.Repository
	Students     curriculum.Students
	Closer       io.Closer `group:"closers"`
}

type reportCache struct {
	dig.Out
	Cache  curriculum.ReportCache
	Closer io.Closer `group:"closers"`
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newConfig() (*core.Config, error) {
	conf := core.NewConfig()
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return conf, nil
}

func newLogger(conf *core.Config) core.Logger {
	return logsvc.New("API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.New("DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile, conf)
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) storage {
	if conf.Database.Engine == core.EngineMemory {
		loggerParam.Logger.Warn("using the in-memory database: data is lost on restart")
		db := dummydb.Open()
		schoolRepo := dummydb.NewSchoolRepository(db)
		return storage{
			SchoolRepo:   schoolRepo,
			ProgressRepo: dummydb.NewProgressRepository(db),
			Students:     schoolRepo,
			Closer:       nopCloser{},
		}
	}

	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		loggerParam.Logger.Fatal("setting up database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		loggerParam.Logger.Fatal("opening database", err)
	}
	if err = database.Migrate(ctx, db); err != nil {
		loggerParam.Logger.Fatal("migrating database", err)
	}
	schoolRepo := sqlxrepos.NewSchoolRepository(db)
	return storage{
		SchoolRepo:   schoolRepo,
		ProgressRepo: sqlxrepos.NewProgressRepository(db),
		Students:     schoolRepo,
		Closer:       db,
	}
}

func newReportCache(conf *core.Config) (reportCache, error) {
	c, err := cachesvc.New(conf)
	if err != nil {
		return reportCache{}, err
	}
	res := reportCache{Cache: c, Closer: nopCloser{}}
	if closer, ok := c.(io.Closer); ok {
		res.Closer = closer
	}
	return res, nil
}

func newValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	return validate, translator
}

func newIdentityStore(conf *core.Config) (*identity.Store, error) {
	codec, err := identity.NewCodec(conf.Identity.Codec, conf.Identity.PassPhrase)
	if err != nil {
		return nil, errors.Wrap(err, "creating identity codec")
	}
	return identity.NewStore(codec, identity.StoreOptions{
		TTL:    conf.Identity.TTL,
		Secure: conf.Identity.Secure,
	}), nil
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newReportCache))
	must(c.Provide(curriculum.LoadCatalog))
	must(c.Provide(newValidator))
	must(c.Provide(newIdentityStore))
	must(c.Provide(emailsvc.New))
	must(c.Provide(school.NewService))
	must(c.Provide(curriculum.NewService))
	must(c.Provide(echoapi.NewServer))

	if os.Getenv("DIG_VISUALIZE") != "" {
		_ = dig.Visualize(c, os.Stdout)
	}

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
