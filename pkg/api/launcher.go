package api

// Launcher drives the application's launcher entry.
type Launcher struct{ api *API }

// SetCount shows count on the launcher icon.
func (l *Launcher) SetCount(count int) error {
	return l.api.Invoke("Launcher.setCount", count)
}

// ClearCount removes the count from the launcher icon.
func (l *Launcher) ClearCount() error {
	return l.api.Invoke("Launcher.clearCount")
}

// SetProgress shows a progress bar; progress is in [0, 1].
func (l *Launcher) SetProgress(progress float64) error {
	return l.api.Invoke("Launcher.setProgress", progress)
}

// ClearProgress hides the progress bar.
func (l *Launcher) ClearProgress() error {
	return l.api.Invoke("Launcher.clearProgress")
}

// SetUrgent asks the launcher to draw attention to the application.
func (l *Launcher) SetUrgent() error {
	return l.api.Invoke("Launcher.setUrgent")
}

// AddAction adds a quicklist entry that runs action each time it is chosen.
func (l *Launcher) AddAction(name string, action func()) error {
	return l.api.Invoke("Launcher.addAction", name, action)
}

// AddStaticAction adds a quicklist entry that opens url.
func (l *Launcher) AddStaticAction(name, url string) error {
	return l.api.Invoke("Launcher.addAction", name, url)
}

// RemoveAction removes the quicklist entry called name.
func (l *Launcher) RemoveAction(name string) error {
	return l.api.Invoke("Launcher.removeAction", name)
}

// RemoveActions removes every quicklist entry the application added.
func (l *Launcher) RemoveActions() error {
	return l.api.Invoke("Launcher.removeActions")
}

// Notification shows desktop notifications.
type Notification struct{ api *API }

// ShowNotification shows summary and body. An empty icon sends null.
func (n *Notification) ShowNotification(summary, body, icon string) error {
	return n.api.Invoke("Notification.showNotification", summary, body, icon)
}

// MessagingIndicator manages entries in the messaging menu.
type MessagingIndicator struct{ api *API }

// ShowIndicator adds or updates the indicator name with props such as
// count or time.
func (m *MessagingIndicator) ShowIndicator(name string, props map[string]any) error {
	return m.api.Invoke("MessagingIndicator.showIndicator", name, props)
}

// ClearIndicator removes the indicator called name.
func (m *MessagingIndicator) ClearIndicator(name string) error {
	return m.api.Invoke("MessagingIndicator.clearIndicator", name)
}

// ClearIndicators removes every indicator the application added.
func (m *MessagingIndicator) ClearIndicators() error {
	return m.api.Invoke("MessagingIndicator.clearIndicators")
}

// AddAction adds a messaging menu action that runs action each time it is
// chosen.
func (m *MessagingIndicator) AddAction(name string, action func()) error {
	return m.api.Invoke("MessagingIndicator.addAction", name, action)
}
