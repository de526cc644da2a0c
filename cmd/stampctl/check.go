package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/animus-labs/stamps/internal/datatype"
	"github.com/animus-labs/stamps/internal/domain"
)

type checkResult struct {
	TypeID     string          `json:"type_id"`
	Config     json.RawMessage `json:"config"`
	Data       json.RawMessage `json:"data,omitempty"`
	Status     domain.StatusID `json:"status,omitempty"`
	Compliance *int            `json:"compliance,omitempty"`
}

func newCheckCmd(a *app) *cobra.Command {
	var typeID, configPath, dataPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a data type configuration and run data offline",
		Long: `Validates a configuration and, when --data is given, a run value against
a built-in data type, then prints their canonical form and the status the
type computes. Files may be JSON or YAML; "-" reads stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "-" && dataPath == "-" {
				return errors.New("only one of --config and --data can read stdin")
			}
			result, err := check(typeID, configPath, dataPath, cmd)
			if err != nil {
				return err
			}
			if a.cfg.Output.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "type:    %s\n", result.TypeID)
			fmt.Fprintf(out, "config:  %s\n", result.Config)
			if result.Data == nil {
				return nil
			}
			fmt.Fprintf(out, "data:    %s\n", result.Data)
			if result.Status == "" {
				fmt.Fprintln(out, "status:  undetermined")
				return nil
			}
			fmt.Fprintf(out, "status:  %s (compliance %d)\n", colorStatus(result.Status), *result.Compliance)
			return nil
		},
	}
	cmd.Flags().StringVar(&typeID, "type", "", "Data type id")
	cmd.Flags().StringVar(&configPath, "config-file", "", "Data type configuration (JSON or YAML)")
	cmd.Flags().StringVar(&dataPath, "data", "", "Run data value (JSON or YAML)")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func check(typeID, configPath, dataPath string, cmd *cobra.Command) (checkResult, error) {
	dt, err := datatype.Builtin().Resolve(typeID)
	if err != nil {
		return checkResult{}, err
	}
	rawConfig, err := readDocument(configPath, cmd.InOrStdin())
	if err != nil {
		return checkResult{}, err
	}
	config, err := dt.DeserializeConfig(rawConfig)
	if err != nil {
		return checkResult{}, fmt.Errorf("config: %w", err)
	}
	if err := dt.ValidateConfig(config); err != nil {
		return checkResult{}, fmt.Errorf("config: %w", err)
	}
	result := checkResult{TypeID: dt.ID()}
	if result.Config, err = dt.SerializeConfig(config); err != nil {
		return checkResult{}, fmt.Errorf("config: %w", err)
	}

	rawData, err := readDocument(dataPath, cmd.InOrStdin())
	if err != nil || rawData == nil {
		return result, err
	}
	value, err := dt.Deserialize(rawData)
	if err != nil {
		return checkResult{}, fmt.Errorf("data: %w", err)
	}
	if value, err = dt.Validate(config, value); err != nil {
		return checkResult{}, fmt.Errorf("data: %w", err)
	}
	if result.Data, err = dt.Serialize(value); err != nil {
		return checkResult{}, fmt.Errorf("data: %w", err)
	}
	computed, ok, err := dt.ComputeStatus(config, value)
	if err != nil {
		return checkResult{}, err
	}
	if ok {
		result.Status = computed.Status
		result.Compliance = &computed.Compliance
	}
	return result, nil
}
