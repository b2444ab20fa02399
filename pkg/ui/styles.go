package ui

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("118"))
	timeStyle      = lipgloss.NewStyle().Faint(true)
	chartNoteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	infoStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("118"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)
