package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
)

const sidebarConnIconSize float32 = 32

type sidebarLayout struct {
	left       *fyne.Container
	rightStack *fyne.Container
	switchTab  func(name string)
	active     func() string
}

type sidebarTab struct {
	name    string
	icon    fyne.Resource
	content fyne.CanvasObject
}

func buildSidebarLayout(tabs []sidebarTab, sidebarConnIcon *widget.Icon) sidebarLayout {
	rightStack := container.NewStack()
	content := make(map[string]fyne.CanvasObject, len(tabs))
	for _, tab := range tabs {
		if tab.content == nil {
			continue
		}
		content[tab.name] = tab.content
		rightStack.Add(tab.content)
		tab.content.Hide()
	}

	active := ""
	for _, tab := range tabs {
		if tab.content == nil {
			continue
		}
		active = tab.name
		tab.content.Show()

		break
	}

	navButtons := make(map[string]*widget.Button, len(tabs))
	updateNavSelection := func() {
		for name, button := range navButtons {
			if name == active {
				button.Importance = widget.HighImportance
			} else {
				button.Importance = widget.LowImportance
			}
			button.Refresh()
		}
	}

	switchTab := func(name string) {
		if name == active {
			return
		}
		current := content[active]
		next := content[name]
		if current == nil || next == nil {
			return
		}

		appLogger.Debug("switching sidebar tab", "from", active, "to", name)
		current.Hide()
		active = name
		next.Show()
		if onShow, ok := next.(interface{ OnShow() }); ok {
			onShow.OnShow()
		}
		updateNavSelection()
		rightStack.Refresh()
	}

	left := container.NewVBox()
	for _, tab := range tabs {
		name := tab.name
		button := widget.NewButtonWithIcon("", tab.icon, func() {
			switchTab(name)
		})
		navButtons[name] = button
		left.Add(button)
	}
	updateNavSelection()
	left.Add(layout.NewSpacer())
	if sidebarConnIcon != nil {
		left.Add(container.NewCenter(container.NewGridWrap(
			fyne.NewSquareSize(sidebarConnIconSize),
			sidebarConnIcon,
		)))
	}

	return sidebarLayout{
		left:       left,
		rightStack: rightStack,
		switchTab:  switchTab,
		active:     func() string { return active },
	}
}
