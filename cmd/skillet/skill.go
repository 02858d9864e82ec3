package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/jingkaihe/skillet/pkg/presenter"
	"github.com/jingkaihe/skillet/pkg/skills"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type SkillAddConfig struct {
	Global        bool
	Dir           string
	CloneAttempts uint
}

func NewSkillAddConfig() *SkillAddConfig {
	return &SkillAddConfig{
		Global:        false,
		Dir:           "",
		CloneAttempts: 3,
	}
}

type SkillRemoveConfig struct {
	Global bool
}

func NewSkillRemoveConfig() *SkillRemoveConfig {
	return &SkillRemoveConfig{
		Global: false,
	}
}

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Manage skills",
	Long:  `List, show, add and remove skills.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var skillAddCmd = withTracing(&cobra.Command{
	Use:   "add <repo>",
	Short: "Add skills from a GitHub repository",
	Long: `Add skills from a GitHub repository. The repository should contain directories
with SKILL.md files. You can specify:

  - A repo: orgname/skills (adds all skills)
  - A repo with specific skill: orgname/skills --dir skills/specific-skill
  - A repo with version: orgname/skills@v0.1.0 (adds from specific tag/branch/sha)

Examples:
  skillet skill add orgname/skills
  skillet skill add orgname/skills --dir skills/specific-skill
  skillet skill add orgname/skills@main
  skillet skill add orgname/skills -g`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return addSkillCmd(cmd.Context(), args[0], getSkillAddConfigFromFlags(cmd))
	},
})

var skillListCmd = withTracing(&cobra.Command{
	Use:   "list",
	Short: "List available skills",
	Long:  `List the skills found in the local, global and plugin skill directories and the built-in skills.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return listSkillsCmd(cmd.Context())
	},
})

var skillShowCmd = withTracing(&cobra.Command{
	Use:   "show <skill-name>",
	Short: "Show a skill's instructions and template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetBool("raw")
		return showSkillCmd(cmd.Context(), args[0], raw)
	},
})

var skillRemoveCmd = withTracing(&cobra.Command{
	Use:   "remove <skill-name>",
	Short: "Remove an installed skill",
	Long: `Remove an installed skill by name.

Examples:
  skillet skill remove specific-skill
  skillet skill remove specific-skill -g`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return removeSkillCmd(args[0], getSkillRemoveConfigFromFlags(cmd))
	},
})

func init() {
	addDefaults := NewSkillAddConfig()
	skillAddCmd.Flags().BoolP("global", "g", addDefaults.Global, "Install to global ~/.skillet/skills directory instead of local ./.skillet/skills")
	skillAddCmd.Flags().StringP("dir", "d", addDefaults.Dir, "Path to a specific skill directory within the repository")
	skillAddCmd.Flags().Uint("clone-attempts", addDefaults.CloneAttempts, "Number of attempts when cloning the repository")

	removeDefaults := NewSkillRemoveConfig()
	skillRemoveCmd.Flags().BoolP("global", "g", removeDefaults.Global, "Remove from global ~/.skillet/skills directory instead of local ./.skillet/skills")

	skillShowCmd.Flags().Bool("raw", false, "Print the SKILL.md body without terminal rendering")

	skillCmd.AddCommand(skillAddCmd)
	skillCmd.AddCommand(skillListCmd)
	skillCmd.AddCommand(skillShowCmd)
	skillCmd.AddCommand(skillRemoveCmd)
	rootCmd.AddCommand(skillCmd)
}

func getSkillAddConfigFromFlags(cmd *cobra.Command) *SkillAddConfig {
	config := NewSkillAddConfig()
	if global, err := cmd.Flags().GetBool("global"); err == nil {
		config.Global = global
	}
	if dir, err := cmd.Flags().GetString("dir"); err == nil {
		config.Dir = dir
	}
	if attempts, err := cmd.Flags().GetUint("clone-attempts"); err == nil && attempts > 0 {
		config.CloneAttempts = attempts
	}
	return config
}

func getSkillRemoveConfigFromFlags(cmd *cobra.Command) *SkillRemoveConfig {
	config := NewSkillRemoveConfig()
	if global, err := cmd.Flags().GetBool("global"); err == nil {
		config.Global = global
	}
	return config
}

func getSkillsDir(global bool) (string, error) {
	if global {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "failed to get user home directory")
		}
		return filepath.Join(homeDir, ".skillet", "skills"), nil
	}
	return filepath.Join(".skillet", "skills"), nil
}

func addSkillCmd(ctx context.Context, repo string, config *SkillAddConfig) error {
	if !isGhCliInstalled() {
		return errors.New("gh CLI is not installed; install the GitHub CLI (gh) to use this command")
	}
	if !isGhAuthenticated() {
		return errors.New("gh CLI is not authenticated; run 'gh auth login'")
	}

	repoName, ref := parseRepoAndRef(repo)

	tmpDir, err := os.MkdirTemp("", "skillet-skill-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary directory")
	}
	defer os.RemoveAll(tmpDir)

	if err := cloneRepo(ctx, repoName, ref, tmpDir, config.CloneAttempts); err != nil {
		return err
	}

	skillsDir, err := getSkillsDir(config.Global)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(skillsDir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create skills directory")
	}

	var skillDirs []string
	if config.Dir != "" {
		targetPath := filepath.Join(tmpDir, config.Dir)
		if _, err := os.Stat(filepath.Join(targetPath, skills.SkillFileName)); os.IsNotExist(err) {
			return errors.Errorf("no %s found at %s", skills.SkillFileName, config.Dir)
		}
		skillDirs = []string{targetPath}
	} else {
		skillDirs, err = findSkillDirs(tmpDir)
		if err != nil {
			return errors.Wrap(err, "failed to find skills in repository")
		}
	}

	if len(skillDirs) == 0 {
		presenter.Warning("No skills found in the repository")
		return nil
	}

	installed := installSkills(ctx, skillDirs, skillsDir)
	if installed > 0 {
		presenter.Info(fmt.Sprintf("Successfully installed %d skill(s)", installed))
	}
	return nil
}

// cloneRepo clones repo into dir with gh, retrying transient failures. The
// target directory is emptied between attempts since git refuses to clone
// into a non-empty one.
func cloneRepo(ctx context.Context, repo, ref, dir string, attempts uint) error {
	cloneArgs := []string{"repo", "clone", repo, dir}
	if ref != "" {
		cloneArgs = append(cloneArgs, "--", "--branch", ref, "--single-branch")
	}

	err := retry.Do(
		func() error {
			if err := resetDir(dir); err != nil {
				return retry.Unrecoverable(err)
			}
			output, err := exec.CommandContext(ctx, "gh", cloneArgs...).CombinedOutput()
			if err != nil {
				return errors.Wrapf(err, "output: %s", strings.TrimSpace(string(output)))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithField("attempt", n+1).Warn("clone failed, retrying")
		}),
	)
	return errors.Wrap(err, "failed to clone repository")
}

func resetDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// installSkills copies each skill directory into skillsDir, skipping skills
// that are already installed or fail to parse.
func installSkills(ctx context.Context, skillDirs []string, skillsDir string) int {
	installed := 0
	for _, dir := range skillDirs {
		skillName := filepath.Base(dir)
		destDir := filepath.Join(skillsDir, skillName)

		if _, err := skills.LoadFile(filepath.Join(dir, skills.SkillFileName)); err != nil {
			logger.G(ctx).WithError(err).WithField("skill", skillName).Debug("invalid skill")
			presenter.Warning(fmt.Sprintf("Skill '%s' is invalid, skipping: %v", skillName, err))
			continue
		}

		if _, err := os.Stat(destDir); err == nil {
			presenter.Warning(fmt.Sprintf("Skill '%s' already exists, skipping", skillName))
			continue
		}

		if err := copyDir(dir, destDir); err != nil {
			presenter.Error(err, fmt.Sprintf("Failed to install skill '%s'", skillName))
			continue
		}

		installed++
		presenter.Success(fmt.Sprintf("Installed skill '%s' to %s", skillName, destDir))
	}
	return installed
}

func parseRepoAndRef(repo string) (string, string) {
	if idx := strings.LastIndex(repo, "@"); idx != -1 {
		return repo[:idx], repo[idx+1:]
	}
	return repo, ""
}

func findSkillDirs(root string) ([]string, error) {
	var skillDirs []string

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() && (info.Name() == ".git" || info.Name() == "node_modules") {
			return filepath.SkipDir
		}

		if !info.IsDir() && info.Name() == skills.SkillFileName {
			skillDirs = append(skillDirs, filepath.Dir(path))
		}

		return nil
	})

	return skillDirs, err
}

func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		destPath := filepath.Join(dst, relPath)

		if info.IsDir() {
			return os.MkdirAll(destPath, info.Mode())
		}

		return copyFile(path, destPath)
	})
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, srcInfo.Mode())
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}

func loadSkills(ctx context.Context) (map[string]*skills.Skill, error) {
	a, err := newApp(ctx, historyOff)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	return a.service.Catalog().Snapshot(), nil
}

func listSkillsCmd(ctx context.Context) error {
	allSkills, err := loadSkills(ctx)
	if err != nil {
		return err
	}

	if len(allSkills) == 0 {
		presenter.Info("No skills installed")
		return nil
	}

	presenter.Table([]string{"NAME", "SOURCE", "SECTIONS", "DESCRIPTION"}, skillRows(allSkills))
	return nil
}

func skillRows(allSkills map[string]*skills.Skill) [][]string {
	rows := make([][]string, 0, len(allSkills))
	for _, name := range skills.SortedNames(allSkills) {
		skill := allSkills[name]
		rows = append(rows, []string{
			skill.Name,
			string(skill.Source),
			fmt.Sprintf("%d", len(skill.Template.Sections)),
			truncate(skill.Description, 60),
		})
	}
	return rows
}

func showSkillCmd(ctx context.Context, name string, raw bool) error {
	allSkills, err := loadSkills(ctx)
	if err != nil {
		return err
	}

	skill, ok := allSkills[name]
	if !ok {
		return errors.Errorf("skill '%s' not found", name)
	}

	presenter.Section(skill.Name)
	presenter.Info(skill.Description)
	if skill.Path != "" {
		presenter.Info(fmt.Sprintf("Path: %s (%s)", skill.Path, skill.Source))
	}
	if names := skill.Template.Names(); len(names) > 0 {
		presenter.Info("Template: " + strings.Join(names, " > "))
	}
	presenter.Separator()

	if raw {
		presenter.Print(skill.Content)
		return nil
	}
	return presenter.Markdown(skill.Content)
}

func removeSkillCmd(name string, config *SkillRemoveConfig) error {
	skillsDir, err := getSkillsDir(config.Global)
	if err != nil {
		return err
	}

	skillDir := filepath.Join(skillsDir, name)
	if _, err := os.Stat(filepath.Join(skillDir, skills.SkillFileName)); os.IsNotExist(err) {
		location := "local"
		if config.Global {
			location = "global"
		}
		return errors.Errorf("skill '%s' not found in %s skills directory", name, location)
	}

	if err := os.RemoveAll(skillDir); err != nil {
		return errors.Wrapf(err, "failed to remove skill '%s'", name)
	}

	presenter.Success(fmt.Sprintf("Removed skill '%s' from %s", name, skillDir))
	return nil
}

func isGhCliInstalled() bool {
	_, err := exec.LookPath("gh")
	return err == nil
}

func isGhAuthenticated() bool {
	return exec.Command("gh", "auth", "status").Run() == nil
}
