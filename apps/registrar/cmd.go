package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/grades"
	"github.com/trezcool/darasa/core/registry"
	"github.com/trezcool/darasa/core/report"
	"github.com/trezcool/darasa/core/roster"
	"github.com/trezcool/darasa/services/recordstore"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	client      *recordstore.Client // nil in demo mode
	reg         *registry.Service
	rosterStore roster.Store
	gradeStore  grades.Store
	reportSvc   *report.Service
	logger      core.Logger
	out         io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -username USERNAME                                 - log in to the record store and print an access token")
	fmt.Fprintln(cli.out, "  students [-page N] [-size N]                             - list students")
	fmt.Fprintln(cli.out, "  roster -class SN [-add SNS] [-remove SNS] [-submit]      - edit a class roster")
	fmt.Fprintln(cli.out, "  grades -class SN [-set SN=GRADE,...] [-save]             - edit a class grade board")
	fmt.Fprintln(cli.out, "  importgrades -class SN -file FILE.xlsx                   - import grades from a workbook")
	fmt.Fprintln(cli.out, "  report [-email ADDRESS]                                  - build grade transcripts")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	loginCmd := flag.NewFlagSet("login", flag.ContinueOnError)
	loginUname := loginCmd.String("username", "", "The account's username. The password will be prompted next.")

	studentsCmd := flag.NewFlagSet("students", flag.ContinueOnError)
	studentsPage := studentsCmd.Int("page", 1, "Page number.")
	studentsSize := studentsCmd.Int("size", core.Conf.GetInt("roster.pageSize"), "Page size.")

	rosterCmd := flag.NewFlagSet("roster", flag.ContinueOnError)
	rosterClass := rosterCmd.Int("class", 0, "The class section SN.")
	rosterAdd := rosterCmd.String("add", "", "Comma-separated student SNs to select.")
	rosterRemove := rosterCmd.String("remove", "", "Comma-separated student SNs to deselect.")
	rosterSubmit := rosterCmd.Bool("submit", false, "Submit the pending changes.")

	gradesCmd := flag.NewFlagSet("grades", flag.ContinueOnError)
	gradesClass := gradesCmd.Int("class", 0, "The class section SN.")
	gradesSet := gradesCmd.String("set", "", "Comma-separated SN=GRADE assignments. An empty grade clears it.")
	gradesSave := gradesCmd.Bool("save", false, "Save the pending changes immediately.")

	importCmd := flag.NewFlagSet("importgrades", flag.ContinueOnError)
	importClass := importCmd.Int("class", 0, "The class section SN.")
	importFile := importCmd.String("file", "", "Path to the .xlsx workbook (student no, grade).")

	reportCmd := flag.NewFlagSet("report", flag.ContinueOnError)
	reportEmail := reportCmd.String("email", "", "Email the transcripts (with an .xlsx attachment) to this address.")

	switch args[1] {
	case "login":
		if err := loginCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *loginUname == "" {
			loginCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			loginCmd.Usage()
			return errHelp
		}
		return cli.login(*loginUname, string(pwd))
	case "students":
		if err := studentsCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.listStudents(*studentsPage, *studentsSize)
	case "roster":
		if err := rosterCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *rosterClass == 0 {
			rosterCmd.Usage()
			return errHelp
		}
		add, err := parseSNList(*rosterAdd)
		if err != nil {
			return err
		}
		remove, err := parseSNList(*rosterRemove)
		if err != nil {
			return err
		}
		return cli.editRoster(*rosterClass, add, remove, *rosterSubmit)
	case "grades":
		if err := gradesCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *gradesClass == 0 {
			gradesCmd.Usage()
			return errHelp
		}
		assignments, err := parseAssignments(*gradesSet)
		if err != nil {
			return err
		}
		return cli.editGrades(*gradesClass, assignments, *gradesSave)
	case "importgrades":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importClass == 0 || *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importGrades(*importClass, *importFile)
	case "report":
		if err := reportCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.report(*reportEmail)
	default:
		cli.printUsage()
		return errHelp
	}
}

func parseSNList(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	sns := make([]int, 0, len(parts))
	for _, p := range parts {
		sn, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid student SN %q", p)
		}
		sns = append(sns, sn)
	}
	return sns, nil
}

type assignment struct {
	studentSN int
	grade     null.Float64
}

func parseAssignments(s string) ([]assignment, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]assignment, 0, len(parts))
	for _, p := range parts {
		kv := strings.SplitN(strings.TrimSpace(p), "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid assignment %q, want SN=GRADE", p)
		}
		sn, err := strconv.Atoi(kv[0])
		if err != nil {
			return nil, fmt.Errorf("invalid student SN %q", kv[0])
		}
		a := assignment{studentSN: sn}
		if kv[1] != "" {
			g, err := strconv.ParseFloat(kv[1], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid grade %q", kv[1])
			}
			a.grade = null.Float64From(g)
		}
		out = append(out, a)
	}
	return out, nil
}
