package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/account"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/grade"
	emailsvc "github.com/trezcool/academia/services/email"
	logsvc "github.com/trezcool/academia/services/logger"
	throttlesvc "github.com/trezcool/academia/services/throttle"
	tokensvc "github.com/trezcool/academia/services/token"
	"github.com/trezcool/academia/storage/database"
	sqlxrepos "github.com/trezcool/academia/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type ServerParams struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	AccountSvc *account.Service
	CourseSvc  *course.Service
	GradeSvc   *grade.Service
	Validate   *validator.Validate
	Translator ut.Translator
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

// newDB creates the database if needed, opens it and applies pending migrations.
func newDB(conf *core.Config, loggerParam DBLoggerParam) (*database.DB, core.Transactor) {
	setUp := func() (*database.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db, "up"); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newRedisClient returns nil when no redis address is configured.
func newRedisClient(conf *core.Config) *redis.Client {
	if conf.Redis.Address == "" {
		return nil
	}
	return throttlesvc.NewRedisClient(conf)
}

// CloseRedis closes the client provided by the container, if any.
func CloseRedis(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}

// newLoginThrottle shares failed login counters through redis when it is configured.
// The in-memory fallback only suits a single instance.
func newLoginThrottle(conf *core.Config, logger core.Logger, client *redis.Client) account.LoginThrottle {
	if client == nil {
		logger.Warn("redis address not set: login attempts are counted in memory")
		return throttlesvc.NewMemoryThrottle(conf)
	}
	return throttlesvc.NewRedisThrottle(client, conf)
}

func newProfileFinder(repo account.Repository) course.ProfileFinder { return repo }

func newCourseFinder(repo course.Repository) grade.CourseFinder { return repo }

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		AccountSvc: p.AccountSvc,
		CourseSvc:  p.CourseSvc,
		GradeSvc:   p.GradeSvc,
		Validate:   p.Validate,
		Translator: p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(newRedisClient))
	must(c.Provide(newLoginThrottle))
	must(c.Provide(tokensvc.NewJWTCodec, dig.As(new(account.TokenCodec))))

	must(c.Provide(sqlxrepos.NewAccountRepository))
	must(c.Provide(sqlxrepos.NewCourseRepository))
	must(c.Provide(sqlxrepos.NewGradeRepository))
	must(c.Provide(newProfileFinder))
	must(c.Provide(newCourseFinder))

	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))

	must(c.Provide(account.NewService))
	must(c.Provide(course.NewService))
	must(c.Provide(grade.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
