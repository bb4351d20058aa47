// Command docgen fills a template workbook offline, without the service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"staff_srv/internal/docgen"
	"staff_srv/internal/importer"
	"staff_srv/internal/templates"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := run(os.Stderr, os.Args[1:]); err != nil {
		logrus.WithError(err).Error("Документ не сформирован")
		os.Exit(1)
	}
}

func run(output io.Writer, args []string) error {
	flags := flag.NewFlagSet("docgen", flag.ContinueOnError)
	flags.SetOutput(output)

	templatePath := flags.String("template", "", "Path to the .xlsx template")
	employeesPath := flags.String("employees", "", "Employees: JSON array, .xlsx or .xls list")
	mappingPath := flags.String("mapping", "", "Field mapping JSON (optional, markers mode when empty)")
	startRow := flags.Int("start-row", 0, "First row of the block for explicit mappings")
	outPath := flags.String("out", "", "Output file or directory (default: current directory)")
	name := flags.String("name", "", "Document name (default: template file name)")
	maxEmployees := flags.Int("max-employees", 0, "Employees per document limit, 0 for none")
	verbose := flags.Bool("v", false, "Debug logging")

	if err := flags.Parse(args); err != nil {
		return err
	}
	if *templatePath == "" || *employeesPath == "" {
		return errors.New("-template and -employees are required")
	}

	logger := logrus.New()
	logger.SetOutput(output)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	workbook, err := os.ReadFile(*templatePath)
	if err != nil {
		return fmt.Errorf("read template: %w", errors.Join(docgen.ErrTemplateFileMissing, err))
	}

	var mappings []docgen.FieldMapping
	if *mappingPath != "" {
		raw, err := os.ReadFile(*mappingPath)
		if err != nil {
			return fmt.Errorf("read mapping: %w", err)
		}
		if mappings, _, err = templates.UpgradeMapping(raw); err != nil {
			return err
		}
	}

	employees, err := loadEmployees(*employeesPath)
	if err != nil {
		return err
	}
	logger.WithField("employees", len(employees)).Debug("Сотрудники загружены")

	docName := *name
	if docName == "" {
		docName = strings.TrimSuffix(filepath.Base(*templatePath), filepath.Ext(*templatePath))
	}

	generator := docgen.NewGenerator(logger, docgen.WithMaxEmployees(*maxEmployees))
	doc, err := generator.Generate(context.Background(), docgen.GenerationRequest{
		Template: docgen.TemplateDefinition{
			Name:     docName,
			FileName: filepath.Base(*templatePath),
			Workbook: workbook,
			Mapping:  mappings,
			StartRow: *startRow,
		},
		Employees: employees,
	})
	if err != nil {
		return err
	}

	target := *outPath
	if target == "" {
		target = doc.FileName
	} else if info, err := os.Stat(target); err == nil && info.IsDir() {
		target = filepath.Join(target, doc.FileName)
	}

	if err := os.WriteFile(target, doc.Content, 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"file": target,
		"rows": doc.Rows,
	}).Info("Документ записан")
	return nil
}

// loadEmployees читает JSON массив записей или таблицу сотрудников
func loadEmployees(path string) ([]docgen.Employee, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open employees: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
		res, err := importer.Read(f, path)
		if err != nil {
			return nil, err
		}
		out := make([]docgen.Employee, 0, len(res.Employees))
		for i := range res.Employees {
			out = append(out, res.Employees[i].Record())
		}
		return out, nil
	}

	var out []docgen.Employee
	if err := json.NewDecoder(f).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode employees: %w", err)
	}
	return out, nil
}
