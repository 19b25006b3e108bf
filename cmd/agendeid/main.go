package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/agendeid/atendimento/internal/agenda"
	"github.com/agendeid/atendimento/internal/auth"
	"github.com/agendeid/atendimento/internal/db"
	"github.com/agendeid/atendimento/internal/repo"
	"github.com/agendeid/atendimento/internal/rotina"
	"github.com/agendeid/atendimento/internal/util"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	_ = godotenv.Load()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "migrate":
		err = runMigrate(args)
	case "hash":
		err = runHash(args)
	case "criar-funcionario":
		err = withRepository(func(ctx context.Context, r *repo.Repository) error {
			return runCreateStaff(ctx, r, args)
		})
	case "agenda":
		err = withRepository(func(ctx context.Context, r *repo.Repository) error {
			return runAgenda(ctx, r, args)
		})
	case "desativar-usuario":
		err = withRepository(func(ctx context.Context, r *repo.Repository) error {
			return runSetActive(ctx, r, args)
		})
	case "fechar-dias":
		err = withRepository(func(ctx context.Context, r *repo.Repository) error {
			return runCloseDays(ctx, r, args)
		})
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal().Err(err).Str("comando", cmd).Msg("falha")
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "agendeid CLI")
	fmt.Fprintln(os.Stderr, "uso:")
	fmt.Fprintln(os.Stderr, "  agendeid migrate up|down")
	fmt.Fprintln(os.Stderr, "  agendeid hash <senha>")
	fmt.Fprintln(os.Stderr, "  agendeid criar-funcionario --nome \"Rui Alves\" --email rui@agendeid.gov.br --cpf 11144477735 --nascimento 02/03/1985 --senha-env SENHA")
	fmt.Fprintln(os.Stderr, "  agendeid agenda [--data DD/MM/AAAA]")
	fmt.Fprintln(os.Stderr, "  agendeid desativar-usuario --email maria@example.com [--reativar]")
	fmt.Fprintln(os.Stderr, "  agendeid fechar-dias [--fuso America/Sao_Paulo]")
}

func dsnFromEnv() (string, error) {
	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		return "", errors.New("defina DB_DSN ou DATABASE_URL")
	}
	return dsn, nil
}

func withRepository(fn func(ctx context.Context, r *repo.Repository) error) error {
	dsn, err := dsnFromEnv()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		return fmt.Errorf("não foi possível conectar ao banco: %w", err)
	}
	defer pool.Close()
	return fn(ctx, repo.New(pool))
}

func runMigrate(args []string) error {
	dsn, err := dsnFromEnv()
	if err != nil {
		return err
	}
	direction := "up"
	if len(args) > 0 {
		direction = args[0]
	}
	switch direction {
	case "up":
		return db.Migrate(dsn)
	case "down":
		if err := db.Rollback(dsn); err != nil {
			return err
		}
		log.Info().Msg("última migração revertida")
		return nil
	}
	return fmt.Errorf("direção desconhecida: %s", direction)
}

func runHash(args []string) error {
	if len(args) < 1 {
		return errors.New("uso: agendeid hash <senha>")
	}
	hash, err := auth.Hash(args[0])
	if err != nil {
		return fmt.Errorf("hash: %w", err)
	}
	fmt.Println(hash)
	return nil
}

func runCreateStaff(ctx context.Context, r *repo.Repository, args []string) error {
	fs := flag.NewFlagSet("criar-funcionario", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		nome          = fs.String("nome", "", "nome completo")
		email         = fs.String("email", "", "e-mail de acesso")
		cpf           = fs.String("cpf", "", "CPF (apenas números)")
		nascimento    = fs.String("nascimento", "", "data de nascimento DD/MM/AAAA")
		sexo          = fs.String("sexo", "outro", "masculino|feminino|outro")
		nacionalidade = fs.String("nacionalidade", "brasileira", "nacionalidade")
		nomeMae       = fs.String("nome-mae", "", "nome da mãe")
		senhaEnv      = fs.String("senha-env", "SENHA_FUNCIONARIO", "variável de ambiente com a senha")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	senha := os.Getenv(*senhaEnv)
	normalizedEmail := strings.ToLower(strings.TrimSpace(*email))
	digits := util.OnlyDigits(*cpf)

	switch {
	case !util.RequireString(*nome):
		return errors.New("--nome é obrigatório")
	case !util.IsValidEmail(normalizedEmail):
		return errors.New("--email inválido")
	case !util.IsValidCPF(digits):
		return errors.New("--cpf inválido")
	case !util.IsValidPassword(senha):
		return fmt.Errorf("defina %s com pelo menos %d caracteres", *senhaEnv, util.MinPasswordLength)
	}
	birth, err := util.ParseDate(*nascimento, time.Local)
	if err != nil {
		return errors.New("--nascimento deve estar em DD/MM/AAAA")
	}

	hash, err := auth.Hash(senha)
	if err != nil {
		return fmt.Errorf("hash: %w", err)
	}

	user, err := r.InsertUser(ctx, repo.NovoUsuario{
		Nome:           strings.TrimSpace(*nome),
		Sexo:           *sexo,
		Nacionalidade:  *nacionalidade,
		DataNascimento: birth,
		NomeMae:        *nomeMae,
		CPF:            digits,
		Email:          normalizedEmail,
		SenhaHash:      hash,
		Perfil:         repo.PerfilFuncionario,
	})
	if err != nil {
		return err
	}

	log.Info().Int64("id", user.ID).Str("email", user.Email).Msg("funcionário criado")
	return nil
}

type userActivator interface {
	SetUserActive(ctx context.Context, email string, ativo bool) (bool, error)
}

// runSetActive bloqueia o login de uma conta sem apagar seus agendamentos.
func runSetActive(ctx context.Context, r userActivator, args []string) error {
	fs := flag.NewFlagSet("desativar-usuario", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	email := fs.String("email", "", "e-mail da conta")
	reativar := fs.Bool("reativar", false, "reativa a conta em vez de desativar")
	if err := fs.Parse(args); err != nil {
		return err
	}

	normalized := strings.ToLower(strings.TrimSpace(*email))
	if !util.IsValidEmail(normalized) {
		return errors.New("--email inválido")
	}

	found, err := r.SetUserActive(ctx, normalized, *reativar)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("usuário %s não encontrado", normalized)
	}

	log.Info().Str("email", normalized).Bool("ativo", *reativar).Msg("conta atualizada")
	return nil
}

func runAgenda(ctx context.Context, r *repo.Repository, args []string) error {
	fs := flag.NewFlagSet("agenda", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	dataFlag := fs.String("data", "", "dia DD/MM/AAAA (padrão: hoje)")
	tz := fs.String("fuso", "America/Sao_Paulo", "fuso horário")
	if err := fs.Parse(args); err != nil {
		return err
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		return fmt.Errorf("fuso inválido: %w", err)
	}
	svc := agenda.NewService(r, loc, nil)

	day := svc.Today()
	if *dataFlag != "" {
		if day, err = util.ParseDate(*dataFlag, loc); err != nil {
			return errors.New("--data deve estar em DD/MM/AAAA")
		}
	}

	items, err := svc.DayAgenda(ctx, day)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Printf("nenhum agendamento em %s\n", util.FormatDate(day))
		return nil
	}

	encoded, _ := json.MarshalIndent(items, "", "  ")
	fmt.Println(string(encoded))
	return nil
}

func runCloseDays(ctx context.Context, r *repo.Repository, args []string) error {
	fs := flag.NewFlagSet("fechar-dias", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	tz := fs.String("fuso", "America/Sao_Paulo", "fuso horário")
	if err := fs.Parse(args); err != nil {
		return err
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		return fmt.Errorf("fuso inválido: %w", err)
	}

	out, err := rotina.NewFechamento(r, loc, 0, nil, log.Logger).RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("faltas: %d, atendidos: %d\n", out.Faltas, out.Atendidos)
	return nil
}
